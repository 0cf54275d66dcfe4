package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vk/scalegrid/internal/scale"
)

// Model is the unified, format-agnostic representation of every loaded
// experiment definition.
type Model struct {
	Experiments []*Experiment
}

// Names returns the experiment names in load order.
func (m *Model) Names() []string {
	names := make([]string, len(m.Experiments))
	for i, e := range m.Experiments {
		names[i] = e.Name
	}
	return names
}

// Find returns the experiment called name. An empty name selects the only
// experiment when exactly one is defined.
func (m *Model) Find(name string) (*Experiment, error) {
	if name == "" {
		switch len(m.Experiments) {
		case 0:
			return nil, fmt.Errorf("no experiment defined")
		case 1:
			return m.Experiments[0], nil
		default:
			return nil, fmt.Errorf("several experiments defined (%s), choose one", strings.Join(m.Names(), ", "))
		}
	}
	i := slices.IndexFunc(m.Experiments, func(e *Experiment) bool { return e.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("experiment %q not defined", name)
	}
	return m.Experiments[i], nil
}

// Experiment is the format-agnostic representation of an `experiment`
// block. Optional step maps and temperature grids are nil when absent.
type Experiment struct {
	Name              string
	Source            string
	StorageRoot       string
	Scales            []scale.Scale
	ThermSteps        map[scale.Scale]uint64
	MeasureSteps      map[scale.Scale]uint64
	Temperatures      []float64
	TemperatureRange  *Range
	MeasureStructFact bool
	Precision         int
	Profile           string
	Engine            *Engine
	Notify            *Notify
}

// Range is an arange-style temperature grid.
type Range struct {
	Start float64
	Stop  float64
	Step  float64
}

// Engine describes how the external computation engine is launched.
type Engine struct {
	Command string
	Args    []string
	Workdir string
	Timeout time.Duration
	Env     map[string]string
}

// Notify describes a socket.io endpoint that receives an event after every
// engine run.
type Notify struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}
