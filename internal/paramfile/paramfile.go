// Package paramfile reads and writes the engine's `key: value` parameter
// file format.
package paramfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vk/scalegrid/internal/fsutil"
	"github.com/vk/scalegrid/internal/scale"
)

// DefaultPrecision is the number of decimals temperatures are rounded to.
const DefaultPrecision = 3

var (
	// ErrMissingTemperatures is returned when no temperature grid is set.
	ErrMissingTemperatures = errors.New("no temperatures set")
	// ErrMissingSteps is returned when the Monte-Carlo step counts are not set.
	ErrMissingSteps = errors.New("monte carlo step counts not set")
)

// Params is the content of one parameter file. Rows and cols are both
// derived from Scale.
type Params struct {
	Scale             scale.Scale
	ThermSteps        uint64
	MeasureSteps      uint64
	Temperatures      []float64
	MeasureStructFact bool
	OutputFile        string
}

// Validate checks the preconditions that must hold before anything is written.
func (p Params) Validate() error {
	if p.Scale <= 0 {
		return fmt.Errorf("invalid scale %d", p.Scale)
	}
	if len(p.Temperatures) == 0 {
		return ErrMissingTemperatures
	}
	if p.OutputFile == "" {
		return errors.New("output file path not set")
	}
	return nil
}

// Writer serialises Params. The zero value rounds to DefaultPrecision.
type Writer struct {
	Precision int
}

func (w Writer) precision() int {
	if w.Precision <= 0 {
		return DefaultPrecision
	}
	return w.Precision
}

// Encode writes p to out. Nothing is written if p is invalid.
func (w Writer) Encode(out io.Writer, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	lines := []struct {
		key   string
		value string
	}{
		{"rows", strconv.Itoa(int(p.Scale))},
		{"cols", strconv.Itoa(int(p.Scale))},
		{"therm_steps", strconv.FormatUint(p.ThermSteps, 10)},
		{"measure_steps", strconv.FormatUint(p.MeasureSteps, 10)},
		{"temperatures", FormatTemperatures(p.Temperatures, w.precision())},
		{"measure_struct_fact", formatBool(p.MeasureStructFact)},
		{"outputfile", p.OutputFile},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(out, "%s: %s\n", l.key, l.value); err != nil {
			return fmt.Errorf("write %s: %w", l.key, err)
		}
	}
	return nil
}

// WriteFile validates p and writes it to path. The file only becomes
// visible once it is complete.
func (w Writer) WriteFile(path string, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, 0o644, func(out io.Writer) error {
		return w.Encode(out, p)
	})
}

// FormatTemperatures rounds every value to precision decimals and joins
// them with ", ". Whole numbers keep one decimal digit ("1.0").
func FormatTemperatures(temps []float64, precision int) string {
	parts := make([]string, len(temps))
	for i, t := range temps {
		parts[i] = formatFloat(round(t, precision))
	}
	return strings.Join(parts, ", ")
}

// round rounds the exact binary value of v to precision decimals, with
// exact ties going to the even digit.
func round(v float64, precision int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', precision, 64), 64)
	if err != nil || r == 0 {
		return 0 // drop the sign of -0
	}
	return r
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

var requiredKeys = []string{"rows", "cols", "therm_steps", "measure_steps", "temperatures", "measure_struct_fact", "outputfile"}

// Read parses a parameter file. Every key Encode writes is required; rows
// and cols must agree because domains are square.
func Read(r io.Reader) (Params, error) {
	values := make(map[string]string, len(requiredKeys))
	sc := bufio.NewScanner(r)
	for n := 0; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Params{}, fmt.Errorf("line %d: bad delimiter in %q", n, line)
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return Params{}, err
	}
	for _, k := range requiredKeys {
		if _, ok := values[k]; !ok {
			return Params{}, fmt.Errorf("missing parameter: %s", k)
		}
	}

	var p Params
	rows, err := strconv.Atoi(values["rows"])
	if err != nil {
		return Params{}, fmt.Errorf("parse rows: %w", err)
	}
	cols, err := strconv.Atoi(values["cols"])
	if err != nil {
		return Params{}, fmt.Errorf("parse cols: %w", err)
	}
	if rows != cols {
		return Params{}, fmt.Errorf("rows (%d) and cols (%d) differ", rows, cols)
	}
	p.Scale = scale.Scale(rows)
	if p.ThermSteps, err = strconv.ParseUint(values["therm_steps"], 10, 64); err != nil {
		return Params{}, fmt.Errorf("parse therm_steps: %w", err)
	}
	if p.MeasureSteps, err = strconv.ParseUint(values["measure_steps"], 10, 64); err != nil {
		return Params{}, fmt.Errorf("parse measure_steps: %w", err)
	}
	for _, field := range strings.Split(values["temperatures"], ",") {
		t, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Params{}, fmt.Errorf("parse temperatures: %w", err)
		}
		p.Temperatures = append(p.Temperatures, t)
	}
	if p.MeasureStructFact, err = strconv.ParseBool(strings.ToLower(values["measure_struct_fact"])); err != nil {
		return Params{}, fmt.Errorf("parse measure_struct_fact: %w", err)
	}
	p.OutputFile = values["outputfile"]
	return p, nil
}
