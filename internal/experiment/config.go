package experiment

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/vk/scalegrid/internal/scale"
)

// Config is the Monte-Carlo configuration shared by all scales of an
// experiment. Step counts are indexed by scale; the temperature grid is
// common to every scale.
type Config struct {
	ThermSteps        map[scale.Scale]uint64
	MeasureSteps      map[scale.Scale]uint64
	Temperatures      []float64
	MeasureStructFact bool
}

// clone returns a deep copy so callers cannot mutate a stored Config.
func (c Config) clone() Config {
	return Config{
		ThermSteps:        maps.Clone(c.ThermSteps),
		MeasureSteps:      maps.Clone(c.MeasureSteps),
		Temperatures:      slices.Clone(c.Temperatures),
		MeasureStructFact: c.MeasureStructFact,
	}
}

// validateScales checks that both step mappings cover exactly set.
func validateScales(set scale.Set, therm, measure map[scale.Scale]uint64) error {
	thermKeys, measureKeys := scale.Keys(therm), scale.Keys(measure)
	if !thermKeys.Equal(measureKeys) {
		return fmt.Errorf("%w: therm_steps has %v, measure_steps has %v", ErrConfigMismatch, thermKeys.Ints(), measureKeys.Ints())
	}
	if !thermKeys.Equal(set) {
		return fmt.Errorf("%w: configuration has %v, experiment has %v", ErrConfigMismatch, thermKeys.Ints(), set.Ints())
	}
	return nil
}

// validateTemperatures rejects values the engine cannot simulate.
func validateTemperatures(temps []float64) error {
	for i, t := range temps {
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return fmt.Errorf("temperature %d (%v) must be a positive finite number", i, t)
		}
	}
	return nil
}
