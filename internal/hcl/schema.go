package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of one file.
type fileRoot struct {
	Experiments []*experimentBlock `hcl:"experiment,block"`
}

type experimentBlock struct {
	Name              string         `hcl:"name,label"`
	StorageRoot       string         `hcl:"storage_root,optional"`
	Scales            []int          `hcl:"scales"`
	ThermSteps        hcl.Expression `hcl:"therm_steps,optional"`
	MeasureSteps      hcl.Expression `hcl:"measure_steps,optional"`
	Temperatures      []float64      `hcl:"temperatures,optional"`
	TemperatureRange  *rangeBlock    `hcl:"temperature_range,block"`
	MeasureStructFact bool           `hcl:"measure_struct_fact,optional"`
	Precision         int            `hcl:"precision,optional"`
	Profile           string         `hcl:"profile,optional"`
	Engine            *engineBlock   `hcl:"engine,block"`
	Notify            *notifyBlock   `hcl:"notify,block"`
}

type rangeBlock struct {
	Start float64 `hcl:"start"`
	Stop  float64 `hcl:"stop"`
	Step  float64 `hcl:"step"`
}

type engineBlock struct {
	Command string            `hcl:"command"`
	Args    []string          `hcl:"args,optional"`
	Workdir string            `hcl:"workdir,optional"`
	Timeout string            `hcl:"timeout,optional"`
	Env     map[string]string `hcl:"env,optional"`
}

type notifyBlock struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	Event              string `hcl:"event,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}
