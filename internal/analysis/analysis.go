// Package analysis derives cross-scale quantities from collected datasets:
// pseudo-critical temperatures, their infinite-size extrapolation and
// engine run-time statistics.
package analysis

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vk/scalegrid/internal/result"
	"github.com/vk/scalegrid/internal/scale"
)

// OnsagerTc is the exact critical temperature of the square-lattice Ising
// model, 2/ln(1+sqrt 2), in units of J/k_B.
var OnsagerTc = 2 / math.Log(1+math.Sqrt2)

// ErrTooFewScales is returned when an extrapolation needs more datasets.
var ErrTooFewScales = errors.New("at least two scales are needed")

// Peak locates the maximum of an observable for one scale.
type Peak struct {
	Scale       scale.Scale `yaml:"scale" json:"scale"`
	Temperature float64     `yaml:"temperature" json:"temperature"`
	Value       float64     `yaml:"value" json:"value"`
}

// Extrapolation is a least-squares fit of T_c(L) = T_c + a/L.
type Extrapolation struct {
	CriticalTemperature float64 `yaml:"critical_temperature" json:"critical_temperature"`
	Slope               float64 `yaml:"slope" json:"slope"`
	RSquared            float64 `yaml:"r_squared" json:"r_squared"`
	Points              int     `yaml:"points" json:"points"`
	// Deviation is the fitted value minus OnsagerTc.
	Deviation float64 `yaml:"deviation" json:"deviation"`
}

// ElapsedStats summarises the engine run times that were reported.
type ElapsedStats struct {
	Count  int     `yaml:"count" json:"count"`
	Total  float64 `yaml:"total_seconds" json:"total_seconds"`
	Mean   float64 `yaml:"mean_seconds" json:"mean_seconds"`
	Median float64 `yaml:"median_seconds" json:"median_seconds"`
	Min    float64 `yaml:"min_seconds" json:"min_seconds"`
	Max    float64 `yaml:"max_seconds" json:"max_seconds"`
}

// Summary is the full cross-scale analysis. Optional parts are nil when
// the data does not support them.
type Summary struct {
	SusceptibilityPeaks []Peak         `yaml:"susceptibility_peaks" json:"susceptibility_peaks"`
	SpecificHeatPeaks   []Peak         `yaml:"specific_heat_peaks" json:"specific_heat_peaks"`
	Extrapolation       *Extrapolation `yaml:"extrapolation,omitempty" json:"extrapolation,omitempty"`
	Elapsed             *ElapsedStats  `yaml:"elapsed,omitempty" json:"elapsed,omitempty"`
}

// Analyze runs every analysis over datasets. Empty datasets are skipped.
func Analyze(datasets map[scale.Scale]*result.Dataset) (*Summary, error) {
	sum := &Summary{}
	for _, s := range slices.Sorted(maps.Keys(datasets)) {
		d := datasets[s]
		if d.Len() == 0 {
			continue
		}
		temps := d.Temperatures()
		chi, err := PeakOf(s, temps, d.Susceptibility())
		if err != nil {
			return nil, err
		}
		c, err := PeakOf(s, temps, d.SpecificHeat())
		if err != nil {
			return nil, err
		}
		sum.SusceptibilityPeaks = append(sum.SusceptibilityPeaks, chi)
		sum.SpecificHeatPeaks = append(sum.SpecificHeatPeaks, c)
	}

	if ex, err := Extrapolate(sum.SusceptibilityPeaks); err == nil {
		sum.Extrapolation = &ex
	} else if !errors.Is(err, ErrTooFewScales) {
		return nil, err
	}

	if el, ok, err := Elapsed(datasets); err != nil {
		return nil, err
	} else if ok {
		sum.Elapsed = &el
	}
	return sum, nil
}

// PeakOf returns the temperature at which values is largest. Ties resolve
// to the lowest index.
func PeakOf(s scale.Scale, temps, values []float64) (Peak, error) {
	if len(values) == 0 || len(values) != len(temps) {
		return Peak{}, fmt.Errorf("scale %s: need equally long, non-empty sequences (got %d and %d)", s, len(temps), len(values))
	}
	i := floats.MaxIdx(values)
	return Peak{Scale: s, Temperature: temps[i], Value: values[i]}, nil
}

// Extrapolate fits the peak temperatures against 1/L and returns the
// intercept as the infinite-size critical temperature.
func Extrapolate(peaks []Peak) (Extrapolation, error) {
	if len(peaks) < 2 {
		return Extrapolation{}, ErrTooFewScales
	}
	xs := make([]float64, len(peaks))
	ys := make([]float64, len(peaks))
	for i, p := range peaks {
		xs[i] = 1 / float64(p.Scale)
		ys[i] = p.Temperature
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return Extrapolation{}, errors.New("extrapolation is undefined for these scales")
	}
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	return Extrapolation{
		CriticalTemperature: alpha,
		Slope:               beta,
		RSquared:            r2,
		Points:              len(peaks),
		Deviation:           alpha - OnsagerTc,
	}, nil
}

// Elapsed summarises the run times reported in the dataset headers. ok is
// false when no dataset reported one.
func Elapsed(datasets map[scale.Scale]*result.Dataset) (es ElapsedStats, ok bool, err error) {
	var data stats.Float64Data
	for _, d := range datasets {
		if d.HasElapsed() {
			data = append(data, d.ElapsedSeconds())
		}
	}
	if len(data) == 0 {
		return ElapsedStats{}, false, nil
	}

	es.Count = len(data)
	if es.Total, err = stats.Sum(data); err != nil {
		return ElapsedStats{}, false, err
	}
	if es.Mean, err = stats.Mean(data); err != nil {
		return ElapsedStats{}, false, err
	}
	if es.Median, err = stats.Median(data); err != nil {
		return ElapsedStats{}, false, err
	}
	if es.Min, err = stats.Min(data); err != nil {
		return ElapsedStats{}, false, err
	}
	if es.Max, err = stats.Max(data); err != nil {
		return ElapsedStats{}, false, err
	}
	return es, true, nil
}
