package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/vk/scalegrid/internal/analysis"
	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/ledger"
	"github.com/vk/scalegrid/internal/scale"
)

// collection builds an experiment with a parsed 16x16 result, a broken
// 32x32 output and a pending 64x64 scale.
func collection(t *testing.T) (*experiment.Experiment, *experiment.Collection) {
	t.Helper()
	ctx := context.Background()
	e, err := experiment.New(ctx, experiment.Options{Name: "ising", StorageRoot: t.TempDir(), Scales: []scale.Scale{16, 32, 64}})
	require.NoError(t, err)

	p16, _ := e.Paths(16)
	p32, _ := e.Paths(32)
	require.NoError(t, os.WriteFile(p16.Out, []byte(
		"temp, energy_density, magnetisation, specific_heat, susceptibility, correlation length, elapsed_time: 90\n"+
			"2.0, -1.7, 0.9, 0.5, 1.0, 2.0\n"+
			"2.5, -1.1, 0.2, 1.5, 8.0, 6.0\n"), 0o644))
	require.NoError(t, os.WriteFile(p32.Out, []byte("h:1\n1, 2\n"), 0o644))

	return e, e.CollectResults(ctx)
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()

	e, c := collection(t)
	a, err := analysis.Analyze(c.Datasets())
	require.NoError(t, err)

	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, Build(e.Name(), e.Dir(), c, a, now)))

	var got struct {
		Experiment  string    `yaml:"experiment"`
		GeneratedAt time.Time `yaml:"generated_at"`
		Scales      []struct {
			Scale          int      `yaml:"scale"`
			State          string   `yaml:"state"`
			Points         int      `yaml:"points"`
			ElapsedSeconds *float64 `yaml:"elapsed_seconds"`
			Error          string   `yaml:"error"`
		} `yaml:"scales"`
		Analysis struct {
			SusceptibilityPeaks []analysis.Peak `yaml:"susceptibility_peaks"`
		} `yaml:"analysis"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "ising", got.Experiment)
	assert.True(t, got.GeneratedAt.Equal(now))
	require.Len(t, got.Scales, 3)
	assert.Equal(t, "parsed", got.Scales[0].State)
	assert.Equal(t, 2, got.Scales[0].Points)
	require.NotNil(t, got.Scales[0].ElapsedSeconds)
	assert.Equal(t, 90.0, *got.Scales[0].ElapsedSeconds)
	assert.Equal(t, "failed", got.Scales[1].State)
	assert.Contains(t, got.Scales[1].Error, "expected 5 or 6 fields")
	assert.Equal(t, "pending", got.Scales[2].State)
	require.Len(t, got.Analysis.SusceptibilityPeaks, 1)
	assert.Equal(t, 2.5, got.Analysis.SusceptibilityPeaks[0].Temperature)
}

func TestWriteYAMLFile(t *testing.T) {
	t.Parallel()

	e, c := collection(t)
	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, WriteYAMLFile(path, Build(e.Name(), e.Dir(), c, nil, time.Now())))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "experiment: ising\n")
	assert.NotContains(t, string(b), "analysis:")
}

func TestWriteWorkbook(t *testing.T) {
	t.Parallel()

	_, c := collection(t)
	a, err := analysis.Analyze(c.Datasets())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteWorkbook(path, c, a))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, "16x16"}, f.GetSheetList())

	rows, err := f.GetRows("16x16")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"temperature", "energy_density", "magnetisation", "specific_heat", "susceptibility", "correlation_length"}, rows[0])
	assert.Equal(t, []string{"2.5", "-1.1", "0.2", "1.5", "8", "6"}, rows[2])

	overview, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(overview), 4)
	assert.Equal(t, []string{"16", "parsed", "2", "90", "2.5", "2.5"}, overview[1])
	assert.Equal(t, "failed", overview[2][1])
	assert.Equal(t, []string{"64", "pending"}, overview[3])
}

func TestStatusTable(t *testing.T) {
	t.Parallel()

	statuses := []experiment.ScaleStatus{
		{Scale: 16, StateName: "completed", ParamPresent: true, OutputPresent: true,
			LastOutcome: &engine.Outcome{ElapsedSeconds: 42}},
		{Scale: 32, StateName: "param-written", ParamPresent: true},
		{Scale: 64, StateName: "failed", Err: errors.New("engine for 64x64 exited with status 3")},
	}
	history := map[scale.Scale]ledger.Run{
		32: {Scale: 32, StartedAt: time.Now(), ExitCode: 1, ElapsedSeconds: -1},
	}

	out := StatusTable(statuses, history, ASCII)
	assert.Contains(t, out, "16x16")
	assert.Contains(t, out, "ok (42s)")
	assert.Contains(t, out, "exit 1")
	assert.Contains(t, out, "exited with status 3")
	assert.Contains(t, out, "missing")

	md := StatusTable(statuses, nil, Markdown)
	assert.Contains(t, md, "| Scale |")
}

func TestCollectionTable(t *testing.T) {
	t.Parallel()

	_, c := collection(t)
	out := CollectionTable(c, ASCII)
	assert.Contains(t, out, "1.5min (90s)")
	assert.Contains(t, out, "1/3 parsed")
	assert.Contains(t, out, "pending")
}
