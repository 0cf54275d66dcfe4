package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/ledger"
	"github.com/vk/scalegrid/internal/notify"
)

// ledgerFile is the default ledger name inside the experiment directory.
const ledgerFile = "runs.db"

// session is a loaded and configured experiment plus the resources that
// must be released when the command is done.
type session struct {
	def       *config.Experiment
	exp       *experiment.Experiment
	ledger    *ledger.Ledger
	notifier  *notify.Notifier
	recorders recorders
}

// RecordRun forwards rec to the ledger and the notifier, whichever are open.
func (s *session) RecordRun(ctx context.Context, rec experiment.RunRecord) error {
	return s.recorders.RecordRun(ctx, rec)
}

func (s *session) close(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Close(); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to close run ledger.", "error", err)
	}
}

// recorders fans a run record out to every recorder. All are called even
// when one fails.
type recorders []experiment.Recorder

func (rs recorders) RecordRun(ctx context.Context, rec experiment.RunRecord) error {
	var errs []error
	for _, r := range rs {
		if err := r.RecordRun(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// open loads the experiment definition and builds a configured Experiment
// from it. Relative paths in the definition are resolved against the
// directory of the file that declared the experiment.
func (a *App) open(ctx context.Context) (*session, error) {
	logger := ctxlog.FromContext(ctx)

	model, err := a.loader.Load(ctx, a.config.ExperimentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	def, err := model.Find(a.config.ExperimentName)
	if err != nil {
		return nil, err
	}
	logger.Debug("Experiment definition loaded.", "name", def.Name, "source", def.Source)

	resolved, err := def.Resolve()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(def.Source)
	root, err := filepath.Abs(relativeTo(baseDir, def.StorageRoot))
	if err != nil {
		return nil, err
	}

	invoker := a.invoker
	if invoker == nil && def.Engine != nil {
		runner, err := a.newRunner(baseDir, def.Engine)
		if err != nil {
			return nil, fmt.Errorf("experiment %q: %w", def.Name, err)
		}
		invoker = runner
	}

	sess := &session{def: def}
	exp, err := experiment.New(ctx, experiment.Options{
		Name:        def.Name,
		StorageRoot: root,
		Scales:      resolved.Scales,
		Precision:   def.Precision,
		Invoker:     invoker,
		Recorder:    sess,
	})
	if err != nil {
		return nil, err
	}
	if err := exp.Configure(ctx, resolved.ThermSteps, resolved.MeasureSteps, resolved.Temperatures); err != nil {
		return nil, err
	}
	exp.SetMeasureStructFact(ctx, def.MeasureStructFact)

	if a.config.LedgerPath != LedgerOff {
		path := a.config.LedgerPath
		if path == "" {
			path = filepath.Join(exp.Dir(), ledgerFile)
		}
		l, err := ledger.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
		sess.ledger = l
		sess.recorders = append(sess.recorders, l)
	}

	if def.Notify != nil && a.runsEngine() {
		n, err := notify.Connect(ctx, def.Notify)
		if err != nil {
			logger.Warn("Run notifications disabled.", "error", err)
		} else {
			sess.notifier = n
			sess.recorders = append(sess.recorders, n)
		}
	}
	sess.exp = exp
	return sess, nil
}

func (a *App) runsEngine() bool {
	return a.config.Command == "run" || a.config.Command == "all"
}

func (a *App) newRunner(baseDir string, def *config.Engine) (*engine.Runner, error) {
	spec := engine.Spec{
		Command: def.Command,
		Args:    def.Args,
		Timeout: def.Timeout,
	}
	if def.Workdir != "" {
		spec.Dir = relativeTo(baseDir, def.Workdir)
	}
	for _, k := range slices.Sorted(maps.Keys(def.Env)) {
		spec.Env = append(spec.Env, k+"="+def.Env[k])
	}

	var opts []engine.Option
	if a.config.StreamEngine {
		opts = append(opts, engine.WithStream(a.outW))
	}
	return engine.New(spec, opts...)
}

// relativeTo resolves p against base unless p is absolute.
func relativeTo(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
