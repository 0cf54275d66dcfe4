// Package result parses engine output files into typed datasets and checks
// their consistency across scales.
package result

import "slices"

// UnknownElapsed marks a dataset whose header carried no run time.
const UnknownElapsed float64 = -1

// Point is one temperature row of a dataset.
type Point struct {
	Temperature       float64
	EnergyDensity     float64
	Magnetisation     float64
	SpecificHeat      float64
	Susceptibility    float64
	CorrelationLength float64
}

// Dataset is the parsed, validated content of one output file. It is
// immutable: accessors return copies and every sequence has the same length,
// index-aligned with Temperatures.
type Dataset struct {
	path           string
	observables    []string
	elapsed        float64
	temperatures   []float64
	energy         []float64
	magnetisation  []float64
	specificHeat   []float64
	susceptibility []float64
	corrLength     []float64
}

// Path returns the file the dataset was parsed from.
func (d *Dataset) Path() string { return d.path }

// Observables returns the observable names from the header line.
func (d *Dataset) Observables() []string { return slices.Clone(d.observables) }

// ElapsedSeconds returns the engine run time from the header, or
// UnknownElapsed.
func (d *Dataset) ElapsedSeconds() float64 { return d.elapsed }

// HasElapsed reports whether the header carried a run time.
func (d *Dataset) HasElapsed() bool { return d.elapsed != UnknownElapsed }

// Len returns the number of data points.
func (d *Dataset) Len() int { return len(d.temperatures) }

// Temperatures returns the temperature column in file order.
func (d *Dataset) Temperatures() []float64 { return slices.Clone(d.temperatures) }

// EnergyDensity returns the energy density column.
func (d *Dataset) EnergyDensity() []float64 { return slices.Clone(d.energy) }

// Magnetisation returns the magnetisation column.
func (d *Dataset) Magnetisation() []float64 { return slices.Clone(d.magnetisation) }

// SpecificHeat returns the specific heat column.
func (d *Dataset) SpecificHeat() []float64 { return slices.Clone(d.specificHeat) }

// Susceptibility returns the magnetic susceptibility column.
func (d *Dataset) Susceptibility() []float64 { return slices.Clone(d.susceptibility) }

// CorrelationLength returns nil when the file carried only five columns.
func (d *Dataset) CorrelationLength() []float64 { return slices.Clone(d.corrLength) }

// HasCorrelationLength reports whether the sixth column was present.
func (d *Dataset) HasCorrelationLength() bool { return d.corrLength != nil }

// Point returns row i.
func (d *Dataset) Point(i int) Point {
	p := Point{
		Temperature:    d.temperatures[i],
		EnergyDensity:  d.energy[i],
		Magnetisation:  d.magnetisation[i],
		SpecificHeat:   d.specificHeat[i],
		Susceptibility: d.susceptibility[i],
	}
	if d.corrLength != nil {
		p.CorrelationLength = d.corrLength[i]
	}
	return p
}

// Points returns every row in file order.
func (d *Dataset) Points() []Point {
	out := make([]Point, d.Len())
	for i := range out {
		out[i] = d.Point(i)
	}
	return out
}

// builder accumulates rows during a parse. finalize freezes it into a
// Dataset exactly once.
type builder struct {
	path        string
	observables []string
	elapsed     float64
	columns     int
	rows        []Point
}

func (b *builder) add(p Point) {
	b.rows = append(b.rows, p)
}

func (b *builder) finalize() *Dataset {
	n := len(b.rows)
	d := &Dataset{
		path:           b.path,
		observables:    slices.Clip(b.observables),
		elapsed:        b.elapsed,
		temperatures:   make([]float64, n),
		energy:         make([]float64, n),
		magnetisation:  make([]float64, n),
		specificHeat:   make([]float64, n),
		susceptibility: make([]float64, n),
	}
	if b.columns == 6 {
		d.corrLength = make([]float64, n)
	}
	for i, r := range b.rows {
		d.temperatures[i] = r.Temperature
		d.energy[i] = r.EnergyDensity
		d.magnetisation[i] = r.Magnetisation
		d.specificHeat[i] = r.SpecificHeat
		d.susceptibility[i] = r.Susceptibility
		if d.corrLength != nil {
			d.corrLength[i] = r.CorrelationLength
		}
	}
	return d
}
