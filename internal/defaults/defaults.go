// Package defaults provides Monte-Carlo step counts and temperature grids
// used when an experiment definition leaves them out.
package defaults

import (
	"errors"
	"fmt"
	"math"

	"github.com/vk/scalegrid/internal/scale"
)

// Profile selects a step-count heuristic.
type Profile string

const (
	// Production scales step counts down as the domain grows, tuned for a
	// quad-core workstation.
	Production Profile = "production"
	// Debug uses a small constant step count for every scale.
	Debug Profile = "debug"
)

const debugSteps = 1_000

// ParseProfile maps a profile name to a Profile. An empty name selects
// Production.
func ParseProfile(name string) (Profile, error) {
	switch Profile(name) {
	case "", Production:
		return Production, nil
	case Debug:
		return Debug, nil
	default:
		return "", fmt.Errorf("unknown profile %q (want %q or %q)", name, Production, Debug)
	}
}

// StepsFor returns the thermalisation and measurement step count for s.
// Both are always equal.
func (p Profile) StepsFor(s scale.Scale) uint64 {
	if p == Debug {
		return debugSteps
	}
	switch {
	case s <= 64:
		return 500_000
	case s <= 128:
		return 100_000
	case s <= 256:
		return 50_000
	case s <= 512:
		return 10_000
	default:
		return 1_000
	}
}

// Steps returns thermalisation and measurement step mappings covering
// every scale of set.
func Steps(set scale.Set, p Profile) (therm, measure map[scale.Scale]uint64) {
	therm = make(map[scale.Scale]uint64, len(set))
	measure = make(map[scale.Scale]uint64, len(set))
	for _, s := range set {
		n := p.StepsFor(s)
		therm[s], measure[s] = n, n
	}
	return therm, measure
}

var (
	// ErrZeroStep is returned by Arange for a zero step.
	ErrZeroStep = errors.New("arange: step must be non-zero")
	// ErrStepDirection is returned by Arange when the step points away
	// from stop.
	ErrStepDirection = errors.New("arange: step must be positive when stop > start and negative when stop < start")
)

// Arange returns start, start+step, ... with round(|stop-start|/|step|)
// values. stop itself is excluded unless rounding reaches it.
func Arange(start, stop, step float64) ([]float64, error) {
	for _, v := range []float64{start, stop, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("arange: %v is not a finite number", v)
		}
	}
	if step == 0 {
		return nil, ErrZeroStep
	}
	if stop != start && math.Signbit(step) != math.Signbit(stop-start) {
		return nil, ErrStepDirection
	}

	n := int(math.Round(math.Abs(stop-start) / math.Abs(step)))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out, nil
}
