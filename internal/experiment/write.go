package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/paramfile"
	"github.com/vk/scalegrid/internal/scale"
)

// WriteReport lists the outcome of writing every parameter file.
type WriteReport struct {
	Written scale.Set
	Failed  map[scale.Scale]error
}

// WriteParameterFile writes the parameter file of s. Preconditions are
// checked before the file is touched and a failed write never leaves a
// truncated file behind.
func (e *Experiment) WriteParameterFile(ctx context.Context, s scale.Scale) error {
	params, err := e.paramsFor(s)
	if err != nil {
		return &ScaleError{Scale: s, Op: "write parameter file", Err: err}
	}
	path := e.paths[s].Param
	if err := e.writer.WriteFile(path, params); err != nil {
		return &ScaleError{Scale: s, Op: "write parameter file", Err: err}
	}
	ctxlog.FromContext(ctx).Info("Parameter file written.", "scale", s.String(), "path", path)
	return nil
}

// WriteAllParameterFiles attempts every scale. A failure on one scale is
// reported but never prevents the remaining scales from being written.
// The returned error joins every per-scale failure.
func (e *Experiment) WriteAllParameterFiles(ctx context.Context) (WriteReport, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Writing parameter files.", "dir", e.Dir(), "scales", e.scales.Ints())

	report := WriteReport{Failed: make(map[scale.Scale]error)}
	var errs []error
	for _, s := range e.scales {
		if err := e.WriteParameterFile(ctx, s); err != nil {
			logger.Error("Failed to write parameter file.", "scale", s.String(), "error", err)
			report.Failed[s] = err
			errs = append(errs, err)
			continue
		}
		report.Written = append(report.Written, s)
	}
	return report, errors.Join(errs...)
}

// RecoverConfig rebuilds the configuration from the parameter files already
// on disk. Every scale must have a parameter file and all files must share
// one temperature grid and one structure-factor flag; otherwise the current
// configuration is left unchanged.
func (e *Experiment) RecoverConfig(ctx context.Context) error {
	therm := make(map[scale.Scale]uint64, len(e.scales))
	measure := make(map[scale.Scale]uint64, len(e.scales))
	var temps []float64
	var structFact bool

	for i, s := range e.scales {
		params, err := readParamFile(e.paths[s].Param)
		if err != nil {
			return &ScaleError{Scale: s, Op: "recover configuration", Err: err}
		}
		if params.Scale != s {
			return &ScaleError{Scale: s, Op: "recover configuration", Err: fmt.Errorf("file describes scale %s", params.Scale)}
		}
		if i == 0 {
			temps, structFact = params.Temperatures, params.MeasureStructFact
		} else if !slices.Equal(temps, params.Temperatures) || structFact != params.MeasureStructFact {
			return &ScaleError{Scale: s, Op: "recover configuration", Err: errors.New("parameter files disagree on shared settings")}
		}
		therm[s], measure[s] = params.ThermSteps, params.MeasureSteps
	}

	if err := e.Configure(ctx, therm, measure, temps); err != nil {
		return err
	}
	e.SetMeasureStructFact(ctx, structFact)
	ctxlog.FromContext(ctx).Info("Configuration recovered from parameter files.", "dir", e.Dir())
	return nil
}

func readParamFile(path string) (paramfile.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return paramfile.Params{}, err
	}
	defer f.Close()
	return paramfile.Read(f)
}
