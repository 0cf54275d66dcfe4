package result

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// ParseError describes why an output file could not be turned into a
// Dataset. Line is 0-based (the header is line 0); Field is 0-based and -1
// when the error is not tied to a field.
type ParseError struct {
	Path  string
	Line  int
	Field int
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line < 0:
		return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
	case e.Field < 0:
		return fmt.Sprintf("parse %s: line %d: %v", e.Path, e.Line, e.Err)
	default:
		return fmt.Sprintf("parse %s: line %d, field %d: %v", e.Path, e.Line, e.Field, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsPending reports whether err means the output file does not exist yet.
func IsPending(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ParseFile opens path and parses it. A missing file yields a ParseError
// for which IsPending is true.
func ParseFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Line: -1, Field: -1, Err: err}
	}
	defer f.Close()
	return parse(path, f)
}

// Parse reads an output file from r. name is only used in error messages.
func Parse(name string, r io.Reader) (*Dataset, error) {
	return parse(name, r)
}

func parse(path string, r io.Reader) (*Dataset, error) {
	b := &builder{path: path, elapsed: UnknownElapsed}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	n := 0
	for ; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if n == 0 {
			b.observables, b.elapsed = parseHeader(line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, columns, err := parseRecord(line)
		if err != nil {
			err.Path, err.Line = path, n
			return nil, err
		}
		if b.columns == 0 {
			b.columns = columns
		} else if columns != b.columns {
			return nil, &ParseError{Path: path, Line: n, Field: -1,
				Err: fmt.Errorf("record has %d fields, previous records have %d", columns, b.columns)}
		}
		b.add(p)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: n, Field: -1, Err: err}
	}
	if n == 0 {
		return nil, &ParseError{Path: path, Line: 0, Field: -1, Err: errors.New("missing header line")}
	}
	return b.finalize(), nil
}

// parseHeader splits "obs1, obs2, ...:<elapsed>". Without a colon, or with
// an unreadable elapsed time, the run time is unknown.
func parseHeader(line string) ([]string, float64) {
	left, right, found := strings.Cut(line, ":")
	if !found {
		return splitTrim(line, ","), UnknownElapsed
	}
	observables := splitTrim(left, ",")
	elapsed, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if err != nil {
		return observables, UnknownElapsed
	}
	return observables, elapsed
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseRecord(line string) (Point, int, *ParseError) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 && len(fields) != 6 {
		return Point{}, 0, &ParseError{Field: -1, Err: fmt.Errorf("expected 5 or 6 fields, got %d", len(fields))}
	}
	values := make([]float64, 6)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Point{}, 0, &ParseError{Field: i, Err: err}
		}
		values[i] = v
	}
	return Point{
		Temperature:       values[0],
		EnergyDensity:     values[1],
		Magnetisation:     values[2],
		SpecificHeat:      values[3],
		Susceptibility:    values[4],
		CorrelationLength: values[5],
	}, len(fields), nil
}
