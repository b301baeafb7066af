package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sansfit/domain/sans"
	"sansfit/internal/errors"
)

// paramsHeader is the parameter export schema: one row per declared
// parameter, polydisperse or not.
var paramsHeader = []string{"Parameter", "Value", "Min", "Max", "Fitted"}

// WriteParamsCSV exports the parameter table. Row order follows names.
func WriteParamsCSV(w io.Writer, names []string, params map[string]sans.ParamInfo) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(paramsHeader); err != nil {
		return errors.Wrap(err, "writing parameter header")
	}
	for _, name := range names {
		info, ok := params[name]
		if !ok {
			continue
		}
		row := []string{
			name,
			strconv.FormatFloat(info.Value, 'g', -1, 64),
			strconv.FormatFloat(info.Min, 'g', -1, 64),
			strconv.FormatFloat(info.Max, 'g', -1, 64),
			strconv.FormatBool(info.Vary),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing parameter row %s", name)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadParamsCSV parses a parameter export back into (ordered names, rows).
// Round-trip property: WriteParamsCSV then ReadParamsCSV reproduces the
// same (value, min, max, vary) tuple for every parameter name.
func ReadParamsCSV(r io.Reader) ([]string, map[string]sans.ParamInfo, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading parameter header")
	}
	if len(header) != len(paramsHeader) || !strings.EqualFold(header[0], "Parameter") {
		return nil, nil, errors.InvalidInput(fmt.Sprintf("unexpected parameter header %q", strings.Join(header, ",")))
	}

	var names []string
	params := map[string]sans.ParamInfo{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading parameter row")
		}
		value, err1 := strconv.ParseFloat(rec[1], 64)
		minV, err2 := strconv.ParseFloat(rec[2], 64)
		maxV, err3 := strconv.ParseFloat(rec[3], 64)
		vary, err4 := strconv.ParseBool(rec[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, nil, errors.InvalidInput(fmt.Sprintf("malformed parameter row for %q", rec[0]))
		}
		names = append(names, rec[0])
		params[rec[0]] = sans.ParamInfo{Value: value, Min: minV, Max: maxV, Vary: vary}
	}
	return names, params, nil
}
