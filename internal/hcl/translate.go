// This file translates decoded HCL blocks into the format-agnostic
// configuration model.

package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/scale"
)

func (l *Loader) translateExperiment(ctx context.Context, b *experimentBlock) (*config.Experiment, error) {
	logger := ctxlog.FromContext(ctx).With("experiment", b.Name)
	logger.Debug("Translating HCL experiment to internal config model.")

	exp := &config.Experiment{
		Name:              b.Name,
		StorageRoot:       b.StorageRoot,
		Temperatures:      b.Temperatures,
		MeasureStructFact: b.MeasureStructFact,
		Precision:         b.Precision,
		Profile:           b.Profile,
	}
	if b.Precision < 0 {
		return nil, fmt.Errorf("experiment %q: precision must not be negative", b.Name)
	}

	for _, n := range b.Scales {
		exp.Scales = append(exp.Scales, scale.Scale(n))
	}

	var err error
	if exp.ThermSteps, err = l.stepMap(b.ThermSteps, "therm_steps"); err != nil {
		return nil, fmt.Errorf("experiment %q: %w", b.Name, err)
	}
	if exp.MeasureSteps, err = l.stepMap(b.MeasureSteps, "measure_steps"); err != nil {
		return nil, fmt.Errorf("experiment %q: %w", b.Name, err)
	}
	logger.Debug("Step maps translated.", "therm_steps_set", exp.ThermSteps != nil, "measure_steps_set", exp.MeasureSteps != nil)

	if r := b.TemperatureRange; r != nil {
		exp.TemperatureRange = &config.Range{Start: r.Start, Stop: r.Stop, Step: r.Step}
	}

	if e := b.Engine; e != nil {
		exp.Engine = &config.Engine{
			Command: e.Command,
			Args:    e.Args,
			Workdir: e.Workdir,
			Env:     e.Env,
		}
		if e.Timeout != "" {
			d, err := time.ParseDuration(e.Timeout)
			if err != nil {
				return nil, fmt.Errorf("experiment %q: invalid engine timeout: %w", b.Name, err)
			}
			exp.Engine.Timeout = d
		}
	}

	if n := b.Notify; n != nil {
		exp.Notify = &config.Notify{
			URL:                n.URL,
			Namespace:          n.Namespace,
			Event:              n.Event,
			InsecureSkipVerify: n.InsecureSkipVerify,
		}
	}
	return exp, nil
}

// stepMap evaluates a `{ "16" = 1000 }` style expression. An omitted
// attribute yields a nil map.
func (l *Loader) stepMap(expr hcl.Expression, attr string) (map[scale.Scale]uint64, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(l.evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}

	converted, err := convert.Convert(val, cty.Map(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("%s must map scales to step counts: %w", attr, err)
	}
	if !converted.IsWhollyKnown() {
		return nil, fmt.Errorf("%s must be known at load time", attr)
	}

	out := make(map[scale.Scale]uint64, converted.LengthInt())
	for it := converted.ElementIterator(); it.Next(); {
		k, v := it.Element()
		s, err := scale.Parse(k.AsString())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", attr, err)
		}
		if v.IsNull() {
			return nil, fmt.Errorf("%s[%s] must not be null", attr, k.AsString())
		}
		var n uint64
		if err := gocty.FromCtyValue(v, &n); err != nil {
			return nil, fmt.Errorf("%s[%s]: %w", attr, k.AsString(), err)
		}
		out[s] = n
	}
	return out, nil
}
