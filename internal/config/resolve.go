package config

import (
	"fmt"
	"maps"

	"github.com/vk/scalegrid/internal/defaults"
	"github.com/vk/scalegrid/internal/scale"
)

// Resolved holds the concrete Monte-Carlo settings of an experiment after
// defaults have been applied.
type Resolved struct {
	Scales       scale.Set
	ThermSteps   map[scale.Scale]uint64
	MeasureSteps map[scale.Scale]uint64
	// Temperatures is nil when the definition sets no grid; the grid may
	// then be adopted from existing results.
	Temperatures []float64
}

// Resolve applies the step-count profile to missing step maps and expands
// a temperature range. Explicit step maps are kept as written, so a map
// that does not cover the scale set surfaces as a configuration mismatch
// later on.
func (e *Experiment) Resolve() (Resolved, error) {
	set, err := scale.NewSet(e.Scales...)
	if err != nil {
		return Resolved{}, fmt.Errorf("experiment %q: %w", e.Name, err)
	}
	profile, err := defaults.ParseProfile(e.Profile)
	if err != nil {
		return Resolved{}, fmt.Errorf("experiment %q: %w", e.Name, err)
	}

	r := Resolved{
		Scales:       set,
		ThermSteps:   maps.Clone(e.ThermSteps),
		MeasureSteps: maps.Clone(e.MeasureSteps),
	}
	if r.ThermSteps == nil || r.MeasureSteps == nil {
		therm, measure := defaults.Steps(set, profile)
		if r.ThermSteps == nil {
			r.ThermSteps = therm
		}
		if r.MeasureSteps == nil {
			r.MeasureSteps = measure
		}
	}

	switch {
	case e.Temperatures != nil && e.TemperatureRange != nil:
		return Resolved{}, fmt.Errorf("experiment %q: temperatures and temperature_range are mutually exclusive", e.Name)
	case e.TemperatureRange != nil:
		rg := e.TemperatureRange
		temps, err := defaults.Arange(rg.Start, rg.Stop, rg.Step)
		if err != nil {
			return Resolved{}, fmt.Errorf("experiment %q: %w", e.Name, err)
		}
		if len(temps) == 0 {
			return Resolved{}, fmt.Errorf("experiment %q: temperature_range is empty", e.Name)
		}
		r.Temperatures = temps
	case e.Temperatures != nil:
		r.Temperatures = append([]float64(nil), e.Temperatures...)
	}
	return r, nil
}
