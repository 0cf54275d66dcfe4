package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/experiment"
)

func TestPayload(t *testing.T) {
	t.Parallel()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		rec  experiment.RunRecord
		want map[string]any
	}{
		{
			name: "success",
			rec: experiment.RunRecord{
				Experiment: "ising",
				Scale:      32,
				StartedAt:  started,
				Outcome:    engine.Outcome{ElapsedSeconds: 42, Wall: 43 * time.Second},
			},
			want: map[string]any{
				"experiment":      "ising",
				"scale":           32,
				"started_at":      "2024-03-01T12:00:00Z",
				"wall_ms":         int64(43000),
				"exit_code":       0,
				"timed_out":       false,
				"elapsed_seconds": int64(42),
				"succeeded":       true,
			},
		},
		{
			name: "start failure",
			rec: experiment.RunRecord{
				Experiment: "ising",
				Scale:      16,
				StartedAt:  started,
				Outcome:    engine.Outcome{ElapsedSeconds: engine.UnknownElapsed},
				Err:        errors.New("exec: not found"),
			},
			want: map[string]any{
				"experiment":      "ising",
				"scale":           16,
				"started_at":      "2024-03-01T12:00:00Z",
				"wall_ms":         int64(0),
				"exit_code":       0,
				"timed_out":       false,
				"elapsed_seconds": engine.UnknownElapsed,
				"succeeded":       false,
				"error":           "exec: not found",
			},
		},
		{
			name: "timeout",
			rec: experiment.RunRecord{
				Experiment: "ising",
				Scale:      64,
				StartedAt:  started,
				Outcome:    engine.Outcome{ExitCode: -1, TimedOut: true, ElapsedSeconds: engine.UnknownElapsed},
			},
			want: map[string]any{
				"experiment":      "ising",
				"scale":           64,
				"started_at":      "2024-03-01T12:00:00Z",
				"wall_ms":         int64(0),
				"exit_code":       -1,
				"timed_out":       true,
				"elapsed_seconds": engine.UnknownElapsed,
				"succeeded":       false,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tc.want, Payload(tc.rec)); diff != "" {
				t.Errorf("Payload() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"localhost:3000", "://bad", ""} {
		_, err := Connect(context.Background(), &config.Notify{URL: raw})
		require.Error(t, err, raw)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, &config.Notify{URL: "http://127.0.0.1:1/socket.io/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket.io connection")
}
