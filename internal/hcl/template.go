package hcl

import (
	"strconv"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/scale"
)

// Render writes exp as an `experiment` block that Load reads back into an
// equivalent model.
func Render(exp *config.Experiment) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body().AppendNewBlock("experiment", []string{exp.Name}).Body()

	if exp.StorageRoot != "" {
		body.SetAttributeValue("storage_root", cty.StringVal(exp.StorageRoot))
	}
	scales := make([]cty.Value, len(exp.Scales))
	for i, s := range exp.Scales {
		scales[i] = cty.NumberIntVal(int64(s))
	}
	body.SetAttributeValue("scales", listVal(cty.Number, scales))
	body.SetAttributeValue("measure_struct_fact", cty.BoolVal(exp.MeasureStructFact))
	if exp.Precision > 0 {
		body.SetAttributeValue("precision", cty.NumberIntVal(int64(exp.Precision)))
	}
	if exp.Profile != "" {
		body.SetAttributeValue("profile", cty.StringVal(exp.Profile))
	}
	if exp.ThermSteps != nil {
		body.SetAttributeValue("therm_steps", stepsVal(exp.ThermSteps))
	}
	if exp.MeasureSteps != nil {
		body.SetAttributeValue("measure_steps", stepsVal(exp.MeasureSteps))
	}

	if exp.Temperatures != nil {
		temps := make([]cty.Value, len(exp.Temperatures))
		for i, t := range exp.Temperatures {
			temps[i] = cty.NumberFloatVal(t)
		}
		body.SetAttributeValue("temperatures", listVal(cty.Number, temps))
	}
	if r := exp.TemperatureRange; r != nil {
		body.AppendNewline()
		rb := body.AppendNewBlock("temperature_range", nil).Body()
		rb.SetAttributeValue("start", cty.NumberFloatVal(r.Start))
		rb.SetAttributeValue("stop", cty.NumberFloatVal(r.Stop))
		rb.SetAttributeValue("step", cty.NumberFloatVal(r.Step))
	}

	if e := exp.Engine; e != nil {
		body.AppendNewline()
		eb := body.AppendNewBlock("engine", nil).Body()
		eb.SetAttributeValue("command", cty.StringVal(e.Command))
		if len(e.Args) > 0 {
			args := make([]cty.Value, len(e.Args))
			for i, a := range e.Args {
				args[i] = cty.StringVal(a)
			}
			eb.SetAttributeValue("args", cty.ListVal(args))
		}
		if e.Workdir != "" {
			eb.SetAttributeValue("workdir", cty.StringVal(e.Workdir))
		}
		if e.Timeout > 0 {
			eb.SetAttributeValue("timeout", cty.StringVal(e.Timeout.String()))
		}
		if len(e.Env) > 0 {
			env := make(map[string]cty.Value, len(e.Env))
			for k, v := range e.Env {
				env[k] = cty.StringVal(v)
			}
			eb.SetAttributeValue("env", cty.MapVal(env))
		}
	}

	if n := exp.Notify; n != nil {
		body.AppendNewline()
		nb := body.AppendNewBlock("notify", nil).Body()
		nb.SetAttributeValue("url", cty.StringVal(n.URL))
		if n.Namespace != "" {
			nb.SetAttributeValue("namespace", cty.StringVal(n.Namespace))
		}
		if n.Event != "" {
			nb.SetAttributeValue("event", cty.StringVal(n.Event))
		}
		if n.InsecureSkipVerify {
			nb.SetAttributeValue("insecure_skip_verify", cty.True)
		}
	}
	return f.Bytes()
}

func stepsVal(steps map[scale.Scale]uint64) cty.Value {
	if len(steps) == 0 {
		return cty.MapValEmpty(cty.Number)
	}
	m := make(map[string]cty.Value, len(steps))
	for s, n := range steps {
		m[strconv.Itoa(int(s))] = cty.NumberUIntVal(n)
	}
	return cty.MapVal(m)
}

func listVal(ty cty.Type, vals []cty.Value) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(ty)
	}
	return cty.ListVal(vals)
}
