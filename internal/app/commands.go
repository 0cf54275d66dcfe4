package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/scalegrid/internal/analysis"
	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/fsutil"
	"github.com/vk/scalegrid/internal/hcl"
	"github.com/vk/scalegrid/internal/ledger"
	"github.com/vk/scalegrid/internal/report"
	"github.com/vk/scalegrid/internal/scale"
	"github.com/vk/scalegrid/internal/statusserver"
	"github.com/vk/scalegrid/internal/watch"
)

const (
	defaultExperimentName = "ising"
	defaultExperimentFile = "experiment.hcl"
)

// starterExperiment is the definition written by the init command.
func starterExperiment(name string) *config.Experiment {
	return &config.Experiment{
		Name:        name,
		StorageRoot: "data",
		Scales:      []scale.Scale{16, 32, 64},
		TemperatureRange: &config.Range{
			Start: 1.5,
			Stop:  3.5,
			Step:  0.05,
		},
		Precision: 3,
		Profile:   "production",
		Engine: &config.Engine{
			Command: "cargo",
			Args:    []string{"run", "--release", "--"},
			Workdir: "rust_simulation",
		},
	}
}

func (a *App) initExperiment(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	path := a.config.ExperimentPath
	if !strings.EqualFold(filepath.Ext(path), hcl.Extension) {
		path = filepath.Join(path, defaultExperimentFile)
	}
	exists, err := fsutil.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s already exists, refusing to overwrite it", path)
	}

	name := a.config.ExperimentName
	if name == "" {
		name = defaultExperimentName
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content := hcl.Render(starterExperiment(name))
	err = fsutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write experiment definition: %w", err)
	}
	logger.Info("Experiment definition written.", "path", path, "name", name)
	return nil
}

func (a *App) write(ctx context.Context, sess *session) error {
	logger := ctxlog.FromContext(ctx)

	rep, err := sess.exp.WriteAllParameterFiles(ctx)
	logger.Info("Parameter files written.", "written", rep.Written.Ints(), "failed", len(rep.Failed))
	if err != nil {
		return fmt.Errorf("failed to write parameter files: %w", err)
	}
	return nil
}

func (a *App) status(ctx context.Context, sess *session) error {
	fmt.Fprintln(a.outW, a.statusTable(ctx, sess))
	return nil
}

// statusTable renders the current status, enriched with the last recorded
// run of each scale when a ledger is open.
func (a *App) statusTable(ctx context.Context, sess *session) string {
	var history map[scale.Scale]ledger.Run
	if sess.ledger != nil {
		latest, err := sess.ledger.Latest(ctx, sess.exp.Name())
		if err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to read run history.", "error", err)
		}
		history = latest
	}
	return report.StatusTable(sess.exp.Status(ctx), history, report.ASCII)
}

func (a *App) run(ctx context.Context, sess *session) error {
	logger := ctxlog.FromContext(ctx)

	if a.config.StatusPort > 0 {
		srv := statusserver.New(sess.exp)
		if err := srv.Start(ctx, fmt.Sprintf(":%d", a.config.StatusPort)); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		defer func() {
			if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Status server shutdown failed.", "error", err)
			}
		}()
	}

	scales, err := scale.FromInts(a.config.Scales...)
	if err != nil {
		return err
	}

	logger.Info("Starting engine runs.", "scales", scales.Ints(), "workers", a.config.Workers)
	start := time.Now()
	_, runErr := sess.exp.RunAll(ctx, a.config.Workers, scales...)
	fmt.Fprintln(a.outW, a.statusTable(ctx, sess))
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	logger.Info("Engine runs finished.", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *App) collect(ctx context.Context, sess *session) error {
	logger := ctxlog.FromContext(ctx)

	if a.config.Wait > 0 {
		if err := a.waitForOutputs(ctx, sess); err != nil {
			return err
		}
	}

	c := sess.exp.CollectResults(ctx)
	fmt.Fprintln(a.outW, report.CollectionTable(c, report.ASCII))

	summary, err := analysis.Analyze(c.Datasets())
	if err != nil {
		logger.Warn("Cross-scale analysis failed.", "error", err)
		summary = nil
	} else if ex := summary.Extrapolation; ex != nil {
		logger.Info("Critical temperature extrapolated.", "tc", ex.CriticalTemperature, "r_squared", ex.RSquared, "deviation", ex.Deviation)
	}

	var errs []error
	if path := a.config.ReportPath; path != "" {
		s := report.Build(sess.exp.Name(), sess.exp.Dir(), c, summary, time.Now())
		if err := report.WriteYAMLFile(path, s); err != nil {
			errs = append(errs, fmt.Errorf("failed to write report: %w", err))
		} else {
			logger.Info("Summary report written.", "path", path)
		}
	}
	if path := a.config.XLSXPath; path != "" {
		if err := report.WriteWorkbook(path, c, summary); err != nil {
			errs = append(errs, fmt.Errorf("failed to write workbook: %w", err))
		} else {
			logger.Info("Workbook written.", "path", path)
		}
	}
	for _, r := range c.Failed() {
		errs = append(errs, r.Reason)
	}
	return errors.Join(errs...)
}

// waitForOutputs blocks until every output file has settled or the wait
// expires. An expired wait is not an error; collection proceeds with
// whatever is there.
func (a *App) waitForOutputs(ctx context.Context, sess *session) error {
	logger := ctxlog.FromContext(ctx)

	var paths []string
	for _, s := range sess.exp.Scales() {
		p, err := sess.exp.Paths(s)
		if err != nil {
			return err
		}
		paths = append(paths, p.Out)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.config.Wait)
	defer cancel()

	logger.Info("Waiting for output files.", "count", len(paths), "timeout", a.config.Wait)
	ready, err := watch.New().Wait(waitCtx, paths, func(p string) {
		logger.Info("Output file ready.", "path", p)
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Not every output file appeared in time.", "ready", len(ready), "expected", len(paths))
		return nil
	default:
		return fmt.Errorf("failed to watch output files: %w", err)
	}
}

// all writes, runs and collects. Every stage is attempted.
func (a *App) all(ctx context.Context, sess *session) error {
	var errs []error
	if err := a.write(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	if err := a.run(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	if err := a.collect(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
