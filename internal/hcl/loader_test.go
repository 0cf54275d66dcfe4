package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/scale"
)

func writeHCL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Success(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		hcl      string
		env      map[string]string
		validate func(t *testing.T, e *config.Experiment)
	}{
		{
			name: "full definition",
			hcl: `
			experiment "ising" {
				storage_root        = "data"
				scales              = [32, 16]
				measure_struct_fact = true
				precision           = 4
				profile             = "debug"

				therm_steps   = { "16" = 1000, "32" = 2000 }
				measure_steps = { 16 = 3000, 32 = 4000 }
				temperatures  = [1.0, 2.25, 3]

				engine {
					command = "cargo"
					args    = ["run", "--release", "--"]
					workdir = "rust_simulation"
					timeout = "2h"
					env     = { RUST_LOG = "info" }
				}

				notify {
					url   = "http://localhost:3000/socket.io/"
					event = "scale_finished"
				}
			}
			`,
			validate: func(t *testing.T, e *config.Experiment) {
				want := &config.Experiment{
					Name:              "ising",
					Source:            e.Source,
					StorageRoot:       "data",
					Scales:            []scale.Scale{32, 16},
					ThermSteps:        map[scale.Scale]uint64{16: 1000, 32: 2000},
					MeasureSteps:      map[scale.Scale]uint64{16: 3000, 32: 4000},
					Temperatures:      []float64{1.0, 2.25, 3},
					MeasureStructFact: true,
					Precision:         4,
					Profile:           "debug",
					Engine: &config.Engine{
						Command: "cargo",
						Args:    []string{"run", "--release", "--"},
						Workdir: "rust_simulation",
						Timeout: 2 * time.Hour,
						Env:     map[string]string{"RUST_LOG": "info"},
					},
					Notify: &config.Notify{
						URL:   "http://localhost:3000/socket.io/",
						Event: "scale_finished",
					},
				}
				if diff := cmp.Diff(want, e); diff != "" {
					t.Errorf("experiment mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "minimal definition leaves optional parts unset",
			hcl: `
			experiment "min" {
				scales = [8]
			}
			`,
			validate: func(t *testing.T, e *config.Experiment) {
				require.Equal(t, []scale.Scale{8}, e.Scales)
				require.Nil(t, e.ThermSteps)
				require.Nil(t, e.MeasureSteps)
				require.Nil(t, e.Temperatures)
				require.Nil(t, e.TemperatureRange)
				require.Nil(t, e.Engine)
				require.Empty(t, e.StorageRoot)
			},
		},
		{
			name: "temperature range and env variables",
			hcl: `
			experiment "env" {
				storage_root = env.SCALEGRID_ROOT
				scales       = [16]
				temperature_range {
					start = 1.0
					stop  = 3.5
					step  = 0.1
				}
				engine {
					command = env.ENGINE_BIN
				}
			}
			`,
			env: map[string]string{"SCALEGRID_ROOT": "/srv/data", "ENGINE_BIN": "/opt/ising"},
			validate: func(t *testing.T, e *config.Experiment) {
				require.Equal(t, "/srv/data", e.StorageRoot)
				require.Equal(t, &config.Range{Start: 1.0, Stop: 3.5, Step: 0.1}, e.TemperatureRange)
				require.Equal(t, "/opt/ising", e.Engine.Command)
				require.Zero(t, e.Engine.Timeout)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeHCL(t, t.TempDir(), "experiment.hcl", tc.hcl)

			model, err := NewLoader(tc.env).Load(context.Background(), path)
			require.NoError(t, err)
			require.Len(t, model.Experiments, 1)
			require.Equal(t, path, model.Experiments[0].Source)
			tc.validate(t, model.Experiments[0])
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		hcl     string
		wantErr string
	}{
		{
			name:    "syntax error",
			hcl:     `experiment "x" {`,
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "missing scales",
			hcl:     `experiment "x" {}`,
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "unknown attribute",
			hcl:     "experiment \"x\" {\n scales = [1]\n color = \"red\"\n}",
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "non-numeric step count",
			hcl:     "experiment \"x\" {\n scales = [16]\n therm_steps = { \"16\" = \"many\" }\n}",
			wantErr: "therm_steps must map scales to step counts",
		},
		{
			name:    "invalid scale key",
			hcl:     "experiment \"x\" {\n scales = [16]\n measure_steps = { big = 10 }\n}",
			wantErr: `invalid scale "big"`,
		},
		{
			name:    "negative step count",
			hcl:     "experiment \"x\" {\n scales = [16]\n measure_steps = { \"16\" = -10 }\n}",
			wantErr: "measure_steps[16]",
		},
		{
			name:    "bad timeout",
			hcl:     "experiment \"x\" {\n scales = [16]\n engine {\n command = \"e\"\n timeout = \"soon\"\n }\n}",
			wantErr: "invalid engine timeout",
		},
		{
			name:    "undefined env variable",
			hcl:     "experiment \"x\" {\n scales = [16]\n storage_root = env.NOPE\n}",
			wantErr: "failed to decode HCL file",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeHCL(t, t.TempDir(), "experiment.hcl", tc.hcl)
			_, err := NewLoader(nil).Load(context.Background(), path)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeHCL(t, dir, "b.hcl", `experiment "b" { scales = [16] }`)
	writeHCL(t, dir, "nested/a.hcl", `experiment "a" { scales = [32] }`)
	writeHCL(t, dir, "notes.txt", `not hcl`)

	model, err := NewLoader(nil).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, model.Names())

	_, err = NewLoader(nil).Load(context.Background(), filepath.Join(dir, "missing"))
	require.ErrorContains(t, err, "error accessing path")

	_, err = NewLoader(nil).Load(context.Background(), t.TempDir())
	require.ErrorContains(t, err, "no .hcl files found")
}

func TestLoad_DuplicateNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeHCL(t, dir, "one.hcl", `experiment "same" { scales = [16] }`)
	writeHCL(t, dir, "two.hcl", `experiment "same" { scales = [32] }`)

	_, err := NewLoader(nil).Load(context.Background(), dir)
	require.ErrorContains(t, err, `experiment "same" defined in both`)
}

func TestEnvironment(t *testing.T) {
	dir := t.TempDir()
	first := writeHCL(t, dir, "first.env", "SCALEGRID_TEST_A=from-file\nSCALEGRID_TEST_B=first\n")
	second := writeHCL(t, dir, "second.env", "SCALEGRID_TEST_B=second\nSCALEGRID_TEST_C=second\n")
	t.Setenv("SCALEGRID_TEST_A", "from-process")

	env, err := Environment(first, second)
	require.NoError(t, err)
	require.Equal(t, "from-process", env["SCALEGRID_TEST_A"])
	require.Equal(t, "first", env["SCALEGRID_TEST_B"])
	require.Equal(t, "second", env["SCALEGRID_TEST_C"])

	_, err = Environment(filepath.Join(dir, "missing.env"))
	require.ErrorContains(t, err, "failed to read env file")
}
