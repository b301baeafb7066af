package dataio

import (
	"bytes"
	"strings"
	"testing"

	"sansfit/domain/sans"
)

func TestReadDataset(t *testing.T) {
	in := "Q,I,dI\n0.01,100.5,2.0\n0.02,55.1,1.5\n0.05,10.2,0.8\n"
	ds, err := ReadDataset(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadDataset: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ds.Len())
	}
	if ds.Q[1] != 0.02 || ds.I[0] != 100.5 || ds.DI[2] != 0.8 {
		t.Errorf("parsed values wrong: %+v", ds)
	}
}

func TestReadDatasetHeaderCaseInsensitive(t *testing.T) {
	if _, err := ReadDataset(strings.NewReader("q,i,di\n0.01,1,0.1\n")); err != nil {
		t.Errorf("case-insensitive header rejected: %v", err)
	}
}

func TestReadDatasetRejectsBadSchema(t *testing.T) {
	cases := []string{
		"X,Y,Err\n0.01,1,0.1\n",
		"Q,I\n0.01,1\n",
		"Q,I,dI\n0.01,abc,0.1\n",
		"Q,I,dI\n",
	}
	for i, in := range cases {
		if _, err := ReadDataset(strings.NewReader(in)); err == nil {
			t.Errorf("case %d: expected error for %q", i, in)
		}
	}
}

func TestParamsCSVRoundTrip(t *testing.T) {
	names := []string{"scale", "background", "radius", "sld"}
	params := map[string]sans.ParamInfo{
		"scale":      {Value: 1.25, Min: 0, Max: 10, Vary: true},
		"background": {Value: 0.001, Min: 0, Max: 1, Vary: true},
		"radius":     {Value: 50.5, Min: 1, Max: 5000, Vary: false},
		"sld":        {Value: -0.4, Min: -10, Max: 15, Vary: false},
	}

	var buf bytes.Buffer
	if err := WriteParamsCSV(&buf, names, params); err != nil {
		t.Fatalf("WriteParamsCSV: %v", err)
	}

	gotNames, got, err := ReadParamsCSV(&buf)
	if err != nil {
		t.Fatalf("ReadParamsCSV: %v", err)
	}
	if len(gotNames) != len(names) {
		t.Fatalf("round-trip name count = %d, want %d", len(gotNames), len(names))
	}
	for i, name := range names {
		if gotNames[i] != name {
			t.Errorf("row %d name = %q, want %q", i, gotNames[i], name)
		}
		if got[name] != params[name] {
			t.Errorf("%s round-trip = %+v, want %+v", name, got[name], params[name])
		}
	}
}

func TestWriteParamsCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParamsCSV(&buf, nil, nil); err != nil {
		t.Fatalf("WriteParamsCSV: %v", err)
	}
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if strings.TrimSpace(first) != "Parameter,Value,Min,Max,Fitted" {
		t.Errorf("header = %q", first)
	}
}
