package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		level       string
		wantDebug   bool
		wantInfo    bool
		wantWarning bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true, wantWarning: true},
		{level: "info", wantInfo: true, wantWarning: true},
		{level: "warn", wantWarning: true},
		{level: "error"},
		{level: "bogus", wantInfo: true, wantWarning: true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := newLogger(tc.level, "text", &buf)
			logger.Debug("debug line")
			logger.Info("info line")
			logger.Warn("warn line")

			out := buf.String()
			assert.Equal(t, tc.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line")), out)
			assert.Equal(t, tc.wantInfo, bytes.Contains(buf.Bytes(), []byte("info line")), out)
			assert.Equal(t, tc.wantWarning, bytes.Contains(buf.Bytes(), []byte("warn line")), out)
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger("info", "json", &buf).Info("Engine finished.", "scale", "16x16")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Engine finished.", entry["msg"])
	assert.Equal(t, "scalegrid", entry["app"])
	assert.Equal(t, "16x16", entry["scale"])
	assert.NotContains(t, entry, "source")
}
