package experiment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/fsutil"
	"github.com/vk/scalegrid/internal/scale"
)

// RunRecord describes one finished engine invocation.
type RunRecord struct {
	Experiment string
	Scale      scale.Scale
	StartedAt  time.Time
	Outcome    engine.Outcome
	Err        error
}

// Recorder receives a RunRecord after every invocation. Recording
// failures are logged and never change the outcome of a run.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// EngineFailure reports a non-zero engine exit for one scale.
type EngineFailure struct {
	Scale   scale.Scale
	Outcome engine.Outcome
}

func (e *EngineFailure) Error() string {
	if e.Outcome.TimedOut {
		return fmt.Sprintf("engine for %s timed out after %s", e.Scale, e.Outcome.Wall.Round(time.Second))
	}
	msg := fmt.Sprintf("engine for %s exited with status %d", e.Scale, e.Outcome.ExitCode)
	if n := len(e.Outcome.Output); n > 0 {
		msg += ": " + strings.TrimSpace(e.Outcome.Output[n-1])
	}
	return msg
}

// Run invokes the engine once for s and blocks until it exits. A non-zero
// exit is reported through the returned Outcome; the error is reserved for
// problems that prevented the invocation (unknown scale, missing parameter
// file, engine not startable, scale already running).
func (e *Experiment) Run(ctx context.Context, s scale.Scale) (engine.Outcome, error) {
	paths, err := e.Paths(s)
	if err != nil {
		return engine.Outcome{}, &ScaleError{Scale: s, Op: "run", Err: err}
	}
	if e.invoker == nil {
		return engine.Outcome{}, &ScaleError{Scale: s, Op: "run", Err: ErrNoInvoker}
	}
	ok, err := fsutil.Exists(paths.Param)
	if err != nil {
		return engine.Outcome{}, &ScaleError{Scale: s, Op: "run", Err: err}
	}
	if !ok {
		return engine.Outcome{}, &ScaleError{Scale: s, Op: "run", Err: fmt.Errorf("parameter file %s: %w", paths.Param, fs.ErrNotExist)}
	}
	if !e.markRunning(s) {
		return engine.Outcome{}, &ScaleError{Scale: s, Op: "run", Err: ErrScaleBusy}
	}
	defer e.clearRunning(s)

	ctx = ctxlog.With(ctx, "scale", s.String())
	logger := ctxlog.FromContext(ctx)

	started := time.Now()
	outcome, runErr := e.invoker.Run(ctx, paths.Param)
	outcome.ParamPath = paths.Param

	e.runMu.Lock()
	e.lastRun[s] = runState{outcome: outcome, err: runErr}
	e.runMu.Unlock()

	if e.recorder != nil {
		rec := RunRecord{Experiment: e.name, Scale: s, StartedAt: started, Outcome: outcome, Err: runErr}
		if err := e.recorder.RecordRun(ctx, rec); err != nil {
			logger.Warn("Failed to record run.", "error", err)
		}
	}

	if runErr != nil {
		return outcome, &ScaleError{Scale: s, Op: "run", Err: runErr}
	}
	if !outcome.Failed() {
		if ok, _ := fsutil.Exists(paths.Out); !ok {
			logger.Warn("Engine succeeded but wrote no output file.", "output_file", paths.Out)
		}
	}
	return outcome, nil
}

// RunAll runs the engine for each requested scale, or for every scale when
// none are given. With workers <= 1 scales run one at a time in ascending
// order; otherwise up to workers distinct scales run concurrently. Every
// scale is attempted; the returned error joins all per-scale failures,
// including engine failures.
func (e *Experiment) RunAll(ctx context.Context, workers int, scales ...scale.Scale) (map[scale.Scale]engine.Outcome, error) {
	targets := e.scales
	if len(scales) > 0 {
		set, err := scale.NewSet(scales...)
		if err != nil {
			return nil, err
		}
		targets = set
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[scale.Scale]engine.Outcome, len(targets))
		errs     []error
	)
	runOne := func(s scale.Scale) {
		var (
			out engine.Outcome
			err error
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &ScaleError{Scale: s, Op: "run", Err: ctxErr}
		} else {
			out, err = e.Run(ctx, s)
		}
		if err == nil && out.Failed() {
			err = &EngineFailure{Scale: s, Outcome: out}
		}

		mu.Lock()
		defer mu.Unlock()
		if out.ParamPath != "" {
			outcomes[s] = out
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if workers <= 1 {
		for _, s := range targets {
			runOne(s)
		}
		return outcomes, errors.Join(errs...)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, s := range targets {
		g.Go(func() error {
			runOne(s)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, errors.Join(errs...)
}

func (e *Experiment) markRunning(s scale.Scale) bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running[s] {
		return false
	}
	e.running[s] = true
	return true
}

func (e *Experiment) clearRunning(s scale.Scale) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	delete(e.running, s)
}
