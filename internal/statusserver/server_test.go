package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/experiment"
)

type staticSource []experiment.ScaleStatus

func (staticSource) Name() string { return "ising" }

func (s staticSource) Status(context.Context) []experiment.ScaleStatus { return s }

var fixture = staticSource{
	{Scale: 16, StateName: "completed", ParamPresent: true, OutputPresent: true,
		LastOutcome: &engine.Outcome{ElapsedSeconds: 12}},
	{Scale: 32, StateName: "failed", ParamPresent: true,
		LastOutcome: &engine.Outcome{ExitCode: 101, ElapsedSeconds: engine.UnknownElapsed},
		Err:         errors.New("engine for 32x32 exited with status 101")},
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := get(t, New(fixture).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestStatus(t *testing.T) {
	t.Parallel()

	rec := get(t, New(fixture).Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var view StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "ising", view.Experiment)
	require.Len(t, view.Scales, 2)

	first := view.Scales[0]
	assert.Equal(t, "16x16", first.Domain)
	require.NotNil(t, first.LastElapsedSeconds)
	assert.Equal(t, int64(12), *first.LastElapsedSeconds)

	second := view.Scales[1]
	require.NotNil(t, second.LastExitCode)
	assert.Equal(t, 101, *second.LastExitCode)
	assert.Nil(t, second.LastElapsedSeconds)
	assert.Contains(t, second.Error, "status 101")
}

func TestStatusByScale(t *testing.T) {
	t.Parallel()

	h := New(fixture).Handler()
	testCases := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{path: "/status/16", wantCode: http.StatusOK, wantBody: `"state":"completed"`},
		{path: "/status/16x16", wantCode: http.StatusOK, wantBody: `"state":"completed"`},
		{path: "/status/64", wantCode: http.StatusNotFound, wantBody: "not part of the experiment"},
		{path: "/status/abc", wantCode: http.StatusBadRequest, wantBody: "invalid scale"},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			rec := get(t, h, tc.path)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	s := New(fixture)
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Shutdown(context.Background()), "shutdown before start is a no-op")

	require.NoError(t, s.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "OK\n", string(body))

	require.NoError(t, s.Shutdown(context.Background()))
	_, err = http.Get("http://" + s.Addr() + "/health")
	assert.Error(t, err)
}
