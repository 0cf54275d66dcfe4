// Package report renders collected experiment results for humans and
// other tools: a YAML summary, an XLSX workbook and terminal tables.
package report

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/scalegrid/internal/analysis"
	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/fsutil"
)

// Summary is the serialisable outcome of one collection.
type Summary struct {
	Experiment  string            `yaml:"experiment"`
	Directory   string            `yaml:"directory"`
	GeneratedAt time.Time         `yaml:"generated_at"`
	Consistent  bool              `yaml:"temperatures_consistent"`
	Adopted     bool              `yaml:"temperatures_from_results,omitempty"`
	Warnings    []string          `yaml:"warnings,omitempty"`
	Scales      []ScaleSummary    `yaml:"scales"`
	Analysis    *analysis.Summary `yaml:"analysis,omitempty"`
}

// ScaleSummary describes the result of one scale.
type ScaleSummary struct {
	Scale          int      `yaml:"scale"`
	State          string   `yaml:"state"`
	Points         int      `yaml:"points,omitempty"`
	ElapsedSeconds *float64 `yaml:"elapsed_seconds,omitempty"`
	Observables    []string `yaml:"observables,omitempty"`
	Error          string   `yaml:"error,omitempty"`
}

// Build assembles a Summary. a may be nil.
func Build(name, dir string, c *experiment.Collection, a *analysis.Summary, now time.Time) *Summary {
	s := &Summary{
		Experiment:  name,
		Directory:   dir,
		GeneratedAt: now.UTC(),
		Consistent:  c.Consistency.Consistent,
		Adopted:     c.TemperaturesAdopted,
		Warnings:    c.Consistency.Warnings,
		Analysis:    a,
	}
	for _, r := range c.Results {
		ss := ScaleSummary{Scale: int(r.Scale), State: r.State.String()}
		if r.Dataset != nil {
			ss.Points = r.Dataset.Len()
			ss.Observables = r.Dataset.Observables()
			if r.Dataset.HasElapsed() {
				e := r.Dataset.ElapsedSeconds()
				ss.ElapsedSeconds = &e
			}
		}
		if r.Reason != nil {
			ss.Error = r.Reason.Error()
		}
		s.Scales = append(s.Scales, ss)
	}
	return s
}

// WriteYAML encodes s to w.
func WriteYAML(w io.Writer, s *Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return enc.Close()
}

// WriteYAMLFile writes s to path atomically.
func WriteYAMLFile(path string, s *Summary) error {
	return fsutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		return WriteYAML(w, s)
	})
}
