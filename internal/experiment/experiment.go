package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/scalegrid/internal/artifact"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/paramfile"
	"github.com/vk/scalegrid/internal/scale"
)

// Invoker runs the engine for one parameter file. *engine.Runner
// implements it.
type Invoker interface {
	Run(ctx context.Context, paramPath string) (engine.Outcome, error)
}

// Options configures a new Experiment. There is no process-wide default:
// the storage root and the engine are always supplied here.
type Options struct {
	Name        string
	StorageRoot string
	Scales      []scale.Scale
	// Precision is the number of decimals temperatures are rounded to in
	// parameter files. Zero selects paramfile.DefaultPrecision.
	Precision int
	Invoker   Invoker
	// Recorder, if set, is notified after every engine invocation.
	Recorder Recorder
}

// ScaleError scopes a failure to the scale and operation that caused it.
type ScaleError struct {
	Scale scale.Scale
	Op    string
	Err   error
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Scale, e.Err)
}

func (e *ScaleError) Unwrap() error { return e.Err }

// Experiment coordinates parameter files, engine runs and result
// collection for a fixed set of scales.
type Experiment struct {
	name     string
	layout   artifact.Layout
	scales   scale.Set
	paths    map[scale.Scale]artifact.Paths
	writer   paramfile.Writer
	invoker  Invoker
	recorder Recorder

	mu               sync.RWMutex
	cfg              Config
	configured       bool
	tempsFromResults bool

	runMu   sync.Mutex
	running map[scale.Scale]bool
	lastRun map[scale.Scale]runState
}

type runState struct {
	outcome engine.Outcome
	err     error
}

// New creates an experiment and its storage directory. The scale set and
// the artifact paths are fixed from here on.
func New(ctx context.Context, opts Options) (*Experiment, error) {
	logger := ctxlog.FromContext(ctx)

	set, err := scale.NewSet(opts.Scales...)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, errors.New("an experiment needs at least one scale")
	}
	layout, err := artifact.New(opts.StorageRoot, opts.Name)
	if err != nil {
		return nil, err
	}

	created, err := layout.EnsureDir()
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("Storage directory created.", "dir", layout.Dir())
	} else {
		logger.Debug("Storage directory found.", "dir", layout.Dir())
	}

	e := &Experiment{
		name:     opts.Name,
		layout:   layout,
		scales:   set,
		paths:    layout.All(set),
		writer:   paramfile.Writer{Precision: opts.Precision},
		invoker:  opts.Invoker,
		recorder: opts.Recorder,
		running:  make(map[scale.Scale]bool),
		lastRun:  make(map[scale.Scale]runState),
	}
	for _, s := range set {
		logger.Debug("Artifact paths set.", "scale", s.String(), "param_file", e.paths[s].Param, "output_file", e.paths[s].Out)
	}
	return e, nil
}

// NewFromParameters derives the scale set from the step mappings of cfg,
// creates the experiment and configures it in one go.
func NewFromParameters(ctx context.Context, opts Options, cfg Config) (*Experiment, error) {
	therm, measure := scale.Keys(cfg.ThermSteps), scale.Keys(cfg.MeasureSteps)
	if !therm.Equal(measure) {
		return nil, fmt.Errorf("%w: therm_steps has %v, measure_steps has %v", ErrConfigMismatch, therm.Ints(), measure.Ints())
	}
	opts.Scales = therm
	e, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := e.Configure(ctx, cfg.ThermSteps, cfg.MeasureSteps, cfg.Temperatures); err != nil {
		return nil, err
	}
	e.SetMeasureStructFact(ctx, cfg.MeasureStructFact)
	return e, nil
}

// Name returns the experiment name.
func (e *Experiment) Name() string { return e.name }

// Dir returns the experiment's storage directory.
func (e *Experiment) Dir() string { return e.layout.Dir() }

// Scales returns the experiment's scale set in ascending order.
func (e *Experiment) Scales() scale.Set {
	return append(scale.Set(nil), e.scales...)
}

// Paths returns the artifact paths of s.
func (e *Experiment) Paths(s scale.Scale) (artifact.Paths, error) {
	p, ok := e.paths[s]
	if !ok {
		return artifact.Paths{}, fmt.Errorf("%w: %s", ErrUnknownScale, s)
	}
	return p, nil
}

// Config returns a copy of the current configuration and whether Configure
// has succeeded at least once.
func (e *Experiment) Config() (Config, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.clone(), e.configured
}

// TemperaturesFromResults reports whether the temperature grid was adopted
// from a parsed output file rather than configured.
func (e *Experiment) TemperaturesFromResults() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tempsFromResults
}

// Configure validates and installs the step-count mappings and the
// temperature grid. On any validation failure the previous configuration
// is left untouched. A nil or empty temperature grid keeps the current grid, which
// may still be unset and later adopted from results.
func (e *Experiment) Configure(ctx context.Context, therm, measure map[scale.Scale]uint64, temps []float64) error {
	logger := ctxlog.FromContext(ctx)

	if err := validateScales(e.scales, therm, measure); err != nil {
		logger.Error("Monte Carlo parameter scales do not match experiment scales.", "error", err)
		return err
	}
	if err := validateTemperatures(temps); err != nil {
		logger.Error("Invalid temperature grid.", "error", err)
		return err
	}

	next := Config{ThermSteps: therm, MeasureSteps: measure, Temperatures: temps}.clone()

	e.mu.Lock()
	next.MeasureStructFact = e.cfg.MeasureStructFact
	if len(temps) == 0 {
		next.Temperatures = e.cfg.Temperatures
	} else {
		e.tempsFromResults = false
	}
	e.cfg = next
	e.configured = true
	e.mu.Unlock()

	logger.Info("Monte Carlo parameters set.", "scales", e.scales.Ints(), "temperatures", len(temps))
	return nil
}

// SetTemperatures replaces only the temperature grid.
func (e *Experiment) SetTemperatures(ctx context.Context, temps []float64) error {
	if len(temps) == 0 {
		return ErrMissingTemperatures
	}
	if err := validateTemperatures(temps); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg.Temperatures = append([]float64(nil), temps...)
	e.tempsFromResults = false
	e.mu.Unlock()
	ctxlog.FromContext(ctx).Info("Temperatures set.", "count", len(temps))
	return nil
}

// SetMeasureStructFact toggles measurement of the structure factor, from
// which the engine derives the correlation length.
func (e *Experiment) SetMeasureStructFact(ctx context.Context, value bool) {
	e.mu.Lock()
	e.cfg.MeasureStructFact = value
	e.mu.Unlock()
	ctxlog.FromContext(ctx).Debug("Structure factor measurement set.", "value", value)
}

// paramsFor assembles the parameter file content of s from the current
// configuration, failing on missing prerequisites.
func (e *Experiment) paramsFor(s scale.Scale) (paramfile.Params, error) {
	paths, err := e.Paths(s)
	if err != nil {
		return paramfile.Params{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.cfg.Temperatures) == 0 {
		return paramfile.Params{}, ErrMissingTemperatures
	}
	if e.cfg.ThermSteps == nil || e.cfg.MeasureSteps == nil {
		return paramfile.Params{}, ErrMissingSteps
	}
	therm, okT := e.cfg.ThermSteps[s]
	measure, okM := e.cfg.MeasureSteps[s]
	if !okT || !okM {
		return paramfile.Params{}, fmt.Errorf("%w for scale %s", ErrMissingSteps, s)
	}

	return paramfile.Params{
		Scale:             s,
		ThermSteps:        therm,
		MeasureSteps:      measure,
		Temperatures:      append([]float64(nil), e.cfg.Temperatures...),
		MeasureStructFact: e.cfg.MeasureStructFact,
		OutputFile:        paths.Out,
	}, nil
}
