package experiment

import (
	"context"
	"fmt"

	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/fsutil"
	"github.com/vk/scalegrid/internal/result"
	"github.com/vk/scalegrid/internal/scale"
)

// ResultState is the explicit collection state of one scale.
type ResultState int

const (
	// Pending means the output file does not exist yet.
	Pending ResultState = iota
	// Parsed means the output file was parsed into a dataset.
	Parsed
	// ResultFailed means the output file exists but could not be parsed.
	ResultFailed
)

func (s ResultState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Parsed:
		return "parsed"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("ResultState(%d)", int(s))
	}
}

// ScaleResult is the collection outcome of one scale.
type ScaleResult struct {
	Scale   scale.Scale
	State   ResultState
	Dataset *result.Dataset
	Reason  error
}

// Collection holds the outcome of CollectResults for every scale, in
// ascending scale order.
type Collection struct {
	Results     []ScaleResult
	Consistency result.Consistency
	// TemperaturesAdopted is true when this collection back-filled the
	// experiment's temperature grid.
	TemperaturesAdopted bool
}

// Datasets returns the parsed datasets keyed by scale. Pending and failed
// scales are absent.
func (c *Collection) Datasets() map[scale.Scale]*result.Dataset {
	out := make(map[scale.Scale]*result.Dataset)
	for _, r := range c.Results {
		if r.State == Parsed {
			out[r.Scale] = r.Dataset
		}
	}
	return out
}

// Get returns the result of s.
func (c *Collection) Get(s scale.Scale) (ScaleResult, bool) {
	for _, r := range c.Results {
		if r.Scale == s {
			return r, true
		}
	}
	return ScaleResult{}, false
}

// Failed returns the scales whose output could not be parsed.
func (c *Collection) Failed() []ScaleResult {
	var out []ScaleResult
	for _, r := range c.Results {
		if r.State == ResultFailed {
			out = append(out, r)
		}
	}
	return out
}

// CollectResults parses the output file of every scale that has one. A
// failure on one scale never affects another. If no temperature grid was
// ever set, the grid of the first parsed dataset (in ascending scale order)
// is adopted into the configuration.
func (e *Experiment) CollectResults(ctx context.Context) *Collection {
	logger := ctxlog.FromContext(ctx)
	c := &Collection{Results: make([]ScaleResult, 0, len(e.scales))}

	for _, s := range e.scales {
		c.Results = append(c.Results, e.collectOne(ctx, s))
	}

	for _, r := range c.Results {
		if r.State != Parsed {
			continue
		}
		if e.adoptTemperatures(r.Dataset) {
			c.TemperaturesAdopted = true
			logger.Info("Temperatures set from output file.", "scale", r.Scale.String(), "count", r.Dataset.Len())
		}
		break
	}

	c.Consistency = result.CompareTemperatures(c.Datasets())
	for _, w := range c.Consistency.Warnings {
		logger.Warn("Temperature grids differ across scales.", "detail", w)
	}
	return c
}

func (e *Experiment) collectOne(ctx context.Context, s scale.Scale) ScaleResult {
	logger := ctxlog.FromContext(ctx).With("scale", s.String())
	path := e.paths[s].Out

	ok, err := fsutil.Exists(path)
	if err != nil {
		logger.Error("Cannot access output file.", "path", path, "error", err)
		return ScaleResult{Scale: s, State: ResultFailed, Reason: err}
	}
	if !ok {
		logger.Debug("No results yet.", "path", path)
		return ScaleResult{Scale: s, State: Pending}
	}

	d, err := result.ParseFile(path)
	switch {
	case err == nil:
	case result.IsPending(err):
		return ScaleResult{Scale: s, State: Pending}
	default:
		logger.Error("Failed to parse output file.", "error", err)
		return ScaleResult{Scale: s, State: ResultFailed, Reason: err}
	}

	if d.HasElapsed() {
		logger.Info("Found output.", "path", path,
			"elapsed", fmt.Sprintf("%.3gmin (%gs)", d.ElapsedSeconds()/60, d.ElapsedSeconds()))
	} else {
		logger.Info("Found output.", "path", path, "elapsed", "unknown")
	}
	return ScaleResult{Scale: s, State: Parsed, Dataset: d}
}

func (e *Experiment) adoptTemperatures(d *result.Dataset) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cfg.Temperatures) > 0 {
		return false
	}
	e.cfg.Temperatures = d.Temperatures()
	e.tempsFromResults = true
	return true
}
