// Package export renders fit sessions to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"sansfit/domain/sans"
	"sansfit/internal/errors"
)

// Workbook bundles everything one XLSX export needs.
type Workbook struct {
	ModelName  string
	ParamOrder []string
	Params     map[string]sans.ParamInfo
	FitResult  *sans.FitResult // nil when no fit has completed
}

// WriteXLSX renders the parameter table (and fit results when present) as an
// Excel workbook.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Parameters"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}

	header := []interface{}{"Parameter", "Value", "Min", "Max", "Fitted"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header row")
	}
	for i, name := range wb.ParamOrder {
		info, ok := wb.Params[name]
		if !ok {
			continue
		}
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{name, info.Value, info.Min, info.Max, info.Vary}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row for %s", name)
		}
	}

	if wb.FitResult != nil {
		const fitSheet = "Fit Results"
		if _, err := f.NewSheet(fitSheet); err != nil {
			return errors.Wrap(err, "creating fit sheet")
		}
		meta := []interface{}{"Model", wb.ModelName}
		_ = f.SetSheetRow(fitSheet, "A1", &meta)
		chi := []interface{}{"Reduced chi-square", wb.FitResult.ChiSquare}
		_ = f.SetSheetRow(fitSheet, "A2", &chi)
		fitHeader := []interface{}{"Parameter", "Fitted Value", "Stderr"}
		_ = f.SetSheetRow(fitSheet, "A4", &fitHeader)

		// Ordered parameters first, then remaining result entries such as
		// fitted "<name>_pd" widths, sorted by name.
		written := make(map[string]bool, len(wb.FitResult.Parameters))
		names := make([]string, 0, len(wb.FitResult.Parameters))
		for _, name := range wb.ParamOrder {
			if _, ok := wb.FitResult.Parameters[name]; ok && !written[name] {
				names = append(names, name)
				written[name] = true
			}
		}
		extras := make([]string, 0)
		for name := range wb.FitResult.Parameters {
			if !written[name] {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		names = append(names, extras...)

		row := 5
		for _, name := range names {
			fp := wb.FitResult.Parameters[name]
			vals := []interface{}{name, fp.Value, fp.StderrText()}
			if err := f.SetSheetRow(fitSheet, fmt.Sprintf("A%d", row), &vals); err != nil {
				return errors.Wrapf(err, "writing fit row for %s", name)
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
