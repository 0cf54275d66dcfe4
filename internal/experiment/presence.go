package experiment

import (
	"context"
	"errors"

	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/fsutil"
	"github.com/vk/scalegrid/internal/scale"
)

// PresenceReport is the result of a read-only scan for artifact files.
type PresenceReport struct {
	Present scale.Set
	Missing scale.Set
}

// All reports whether no file is missing.
func (r PresenceReport) All() bool { return len(r.Missing) == 0 }

// Any reports whether at least one file exists.
func (r PresenceReport) Any() bool { return len(r.Present) > 0 }

// CheckParameterFilesPresent scans for parameter files. It never mutates
// the experiment and may be called any number of times.
func (e *Experiment) CheckParameterFilesPresent(ctx context.Context) (PresenceReport, error) {
	report, err := e.scan(func(s scale.Scale) string { return e.paths[s].Param })
	logger := ctxlog.FromContext(ctx)
	if report.All() {
		logger.Info("Parameter files available.", "count", len(report.Present))
	} else {
		logger.Info("Not all parameter files written yet.", "missing", report.Missing.Ints())
	}
	return report, err
}

// CheckAnyResultsPresent scans for output files. The report's Any method
// answers whether collection is worthwhile.
func (e *Experiment) CheckAnyResultsPresent(ctx context.Context) (PresenceReport, error) {
	report, err := e.scan(func(s scale.Scale) string { return e.paths[s].Out })
	logger := ctxlog.FromContext(ctx)
	if !report.Any() {
		logger.Info("No output files created yet.")
	} else if !report.All() {
		logger.Info("Missing output.", "scales", report.Missing.Ints())
	}
	return report, err
}

func (e *Experiment) scan(pathOf func(scale.Scale) string) (PresenceReport, error) {
	var report PresenceReport
	var errs []error
	for _, s := range e.scales {
		ok, err := fsutil.Exists(pathOf(s))
		if err != nil {
			errs = append(errs, &ScaleError{Scale: s, Op: "stat", Err: err})
		}
		if ok {
			report.Present = append(report.Present, s)
		} else {
			report.Missing = append(report.Missing, s)
		}
	}
	return report, errors.Join(errs...)
}
