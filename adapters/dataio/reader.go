// Package dataio reads and writes the application's file formats: the
// three-column Q,I,dI scattering data input and the parameter CSV export.
package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sansfit/domain/sans"
	"sansfit/internal/errors"
)

// expectedHeader is the only accepted data file schema.
var expectedHeader = []string{"Q", "I", "dI"}

// ReadDataset parses a three-column Q,I,dI CSV from r. The header row is
// mandatory and checked case-insensitively; any other schema is rejected.
func ReadDataset(r io.Reader) (*sans.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading data header")
	}
	if len(header) != len(expectedHeader) {
		return nil, errors.InvalidInput(fmt.Sprintf("expected header Q,I,dI; got %d columns", len(header)))
	}
	for i, want := range expectedHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, errors.InvalidInput(fmt.Sprintf("expected header Q,I,dI; got %q", strings.Join(header, ",")))
		}
	}

	ds := &sans.Dataset{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "reading data line %d", line)
		}
		vals := make([]float64, 3)
		for i := 0; i < 3; i++ {
			v, perr := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if perr != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("line %d column %s: %q is not numeric", line, expectedHeader[i], rec[i]))
			}
			vals[i] = v
		}
		ds.Q = append(ds.Q, vals[0])
		ds.I = append(ds.I, vals[1])
		ds.DI = append(ds.DI, vals[2])
	}
	if ds.Len() == 0 {
		return nil, errors.InvalidInput("data file contains no points")
	}
	return ds, nil
}

// ReadDatasetFile parses a Q,I,dI CSV from disk.
func ReadDatasetFile(path string) (*sans.Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening data file %s", path)
	}
	defer fh.Close()
	return ReadDataset(fh)
}
