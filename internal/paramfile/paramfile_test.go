package paramfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_ExactContent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Writer{}.Encode(&buf, Params{
		Scale:        16,
		ThermSteps:   1000,
		MeasureSteps: 1000,
		Temperatures: []float64{1.0, 2.0, 3.0},
		OutputFile:   "/data/exp/out_16x16.txt",
	})
	require.NoError(t, err)

	want := "rows: 16\n" +
		"cols: 16\n" +
		"therm_steps: 1000\n" +
		"measure_steps: 1000\n" +
		"temperatures: 1.0, 2.0, 3.0\n" +
		"measure_struct_fact: False\n" +
		"outputfile: /data/exp/out_16x16.txt\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("parameter file mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatTemperatures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		temps     []float64
		precision int
		want      string
	}{
		{"whole numbers keep a decimal", []float64{1, 2}, 3, "1.0, 2.0"},
		{"rounds to precision", []float64{2.26918531, 0.1 + 0.2}, 3, "2.269, 0.3"},
		{"custom precision", []float64{2.26918531}, 1, "2.3"},
		{"negative zero", []float64{-0.0001}, 3, "0.0"},
		{"ties follow the binary value", []float64{1.0005, 1.2345, 2.2695, 1.1115, 2.1235}, 3, "1.0, 1.234, 2.269, 1.111, 2.123"},
		{"exact tie rounds to even", []float64{0.0625, 0.1875}, 3, "0.062, 0.188"},
		{"empty", nil, 3, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, FormatTemperatures(tc.temps, tc.precision))
		})
	}
}

func TestEncode_Preconditions(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Writer{}.Encode(&buf, Params{Scale: 16, OutputFile: "x"})
	require.ErrorIs(t, err, ErrMissingTemperatures)
	assert.Zero(t, buf.Len(), "nothing may be written when a precondition fails")
}

func TestWriteFile_IdempotentAndReadable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "parameter_32x32.txt")
	p := Params{
		Scale:             32,
		ThermSteps:        500000,
		MeasureSteps:      100000,
		Temperatures:      []float64{1.5, 2.269, 3.0},
		MeasureStructFact: true,
		OutputFile:        "out_32x32.txt",
	}
	w := Writer{Precision: 3}

	require.NoError(t, w.WriteFile(path, p))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, w.WriteFile(path, p))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := Read(f)
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("rows: 4\ncols: 4\n"))
	require.ErrorContains(t, err, "missing parameter: therm_steps")

	_, err = Read(strings.NewReader("rows 4\n"))
	require.ErrorContains(t, err, "bad delimiter")

	full := "rows: 4\ncols: 8\ntherm_steps: 1\nmeasure_steps: 1\ntemperatures: 1.0\nmeasure_struct_fact: False\noutputfile: o\n"
	_, err = Read(strings.NewReader(full))
	require.ErrorContains(t, err, "differ")
}
