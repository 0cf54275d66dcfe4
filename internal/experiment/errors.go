package experiment

import (
	"errors"

	"github.com/vk/scalegrid/internal/paramfile"
)

var (
	// ErrConfigMismatch is returned when the scales of a configuration do not
	// match the experiment's scale set.
	ErrConfigMismatch = errors.New("configuration scales do not match experiment scales")
	// ErrMissingTemperatures is returned when a parameter file is requested
	// before temperatures are configured.
	ErrMissingTemperatures = paramfile.ErrMissingTemperatures
	// ErrMissingSteps is returned when a parameter file is requested before
	// the step-count mappings are configured.
	ErrMissingSteps = paramfile.ErrMissingSteps
	// ErrUnknownScale is returned for a scale outside the experiment.
	ErrUnknownScale = errors.New("scale is not part of the experiment")
	// ErrScaleBusy is returned when a scale is already being run.
	ErrScaleBusy = errors.New("scale is already running")
	// ErrNoInvoker is returned by Run when the experiment has no engine.
	ErrNoInvoker = errors.New("no engine configured")
)
