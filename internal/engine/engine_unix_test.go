//go:build unix

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_TimeoutKillsSpawnedProcesses(t *testing.T) {
	t.Parallel()

	spec := helperSpec("spawn-hang")
	spec.Timeout = 200 * time.Millisecond
	r, err := New(spec)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "p.txt")
	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.Less(t, out.Wall, 10*time.Second, "a child holding the output pipe must not outlive the timeout")
}
