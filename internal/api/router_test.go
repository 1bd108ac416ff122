package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/jobimport/internal/api/handler"
	"github.com/timmy/jobimport/internal/config"
	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/service"
)

const testKey = "secret-key"

type fakeSync struct {
	gotSource string
	gotActive []string
	gotFilled []string
}

func (f *fakeSync) Reconcile(_ context.Context, source string, active, filled []string) (*service.SyncStats, error) {
	f.gotSource, f.gotActive, f.gotFilled = source, active, filled
	if len(active) == 0 && len(filled) == 0 {
		return nil, service.ErrEmptySnapshot
	}
	return &service.SyncStats{Source: source, TotalChecked: 3, StillActive: 1, RemovedAtSource: 1, MarkedFilled: 1}, nil
}

type fakePipeline struct {
	runErr  error
	gotOpts service.RunOptions
	gotRun  string
}

func (f *fakePipeline) Sources() []string { return []string{"osonish"} }

func (f *fakePipeline) Run(_ context.Context, name string, opts service.RunOptions) (*service.RunReport, error) {
	f.gotRun, f.gotOpts = name, opts
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &service.RunReport{Source: name, Listed: 2}, nil
}

func (f *fakePipeline) Replay(_ context.Context, name, key string) (*service.RunReport, error) {
	if key == "missing" {
		return nil, service.ErrNoArchive
	}
	return &service.RunReport{Source: name, SnapshotKey: key}, nil
}

type fakeRemap struct{}

func (fakeRemap) Remap(_ context.Context, source string) (*service.RemapStats, error) {
	return &service.RemapStats{Source: source, Checked: 4, Updated: 2}, nil
}

type fakeLogs struct{ gotLimit int }

func (f *fakeLogs) ListRecent(_ context.Context, source string, limit int) ([]domain.ImportLog, error) {
	f.gotLimit = limit
	return []domain.ImportLog{{ID: "l1", Source: source, OperationType: domain.OperationSync}}, nil
}

type fakeCounter struct{}

func (fakeCounter) CountBySource(context.Context, string) (int64, int64, error) { return 7, 10, nil }

type testEnv struct {
	router   *gin.Engine
	sync     *fakeSync
	pipeline *fakePipeline
	logs     *fakeLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Import.APIKey = testKey

	env := &testEnv{sync: &fakeSync{}, pipeline: &fakePipeline{}, logs: &fakeLogs{}}
	env.router = SetupRouter(cfg, Services{
		Sync:     env.sync,
		Pipeline: env.pipeline,
		Remap:    fakeRemap{},
		Logs:     env.logs,
		Counter:  fakeCounter{},
		Health: map[string]handler.Pinger{
			"database": func(context.Context) error { return nil },
		},
	}, logger.New(&logger.Config{Level: "error", Output: io.Discard}))
	return env
}

func (e *testEnv) do(method, path, body, key string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-Import-Key", key)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestImportKeyRequired(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name string
		key  string
	}{
		{name: "missing", key: ""},
		{name: "wrong", key: "nope"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/import/sync", `{"source":"osonish","active_source_ids":["1"]}`, tc.key)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, false, decode(t, w)["success"])
		})
	}
	assert.Empty(t, env.sync.gotSource)
}

func TestEmptyConfiguredKeyRejectsEverything(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	r := SetupRouter(cfg, Services{}, logger.New(&logger.Config{Output: io.Discard}))

	req := httptest.NewRequest(http.MethodGet, "/import/logs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/import/sync",
		`{"source":"osonish","active_source_ids":["1","2"],"filled_source_ids":["3"]}`, testKey)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["total_checked"])
	assert.EqualValues(t, 1, stats["marked_filled"])
	assert.Equal(t, []string{"1", "2"}, env.sync.gotActive)
	assert.Equal(t, []string{"3"}, env.sync.gotFilled)
}

func TestSyncEndpointOnlyFilledIDs(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/import/sync", `{"source":"osonish","filled_source_ids":["3"]}`, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.sync.gotActive)
	assert.Equal(t, []string{"3"}, env.sync.gotFilled)
}

func TestSyncEndpointBadRequests(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"source":`},
		{name: "no source", body: `{"active_source_ids":["1"]}`},
		{name: "no ids", body: `{"source":"osonish"}`},
		{name: "empty id lists", body: `{"source":"osonish","active_source_ids":[],"filled_source_ids":[]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/import/sync", tc.body, testKey)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRunEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/import/run", "", testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "osonish", env.pipeline.gotRun, "single source is the default")
	assert.Nil(t, env.pipeline.gotOpts.OnlyWithContacts)

	w = env.do(http.MethodPost, "/import/run", `{"source":"osonish","max_pages":2,"only_with_contacts":false}`, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, env.pipeline.gotOpts.MaxPages)
	require.NotNil(t, env.pipeline.gotOpts.OnlyWithContacts)
	assert.False(t, *env.pipeline.gotOpts.OnlyWithContacts)
}

func TestRunEndpointErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{name: "in progress", err: service.ErrRunInProgress, want: http.StatusConflict},
		{name: "unknown source", err: service.ErrUnknownSource, want: http.StatusBadRequest},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.pipeline.runErr = tc.err
			w := env.do(http.MethodPost, "/import/run", `{"source":"osonish"}`, testKey)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestReplayEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/import/replay", `{"source":"osonish","key":"snapshots/osonish/a.jsonl"}`, testKey)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/import/replay", `{"source":"osonish","key":"missing"}`, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/import/replay", `{}`, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemapEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/import/remap", `{"source":"osonish"}`, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["updated"])

	w = env.do(http.MethodPost, "/import/remap", `{}`, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/import/logs?source=osonish", "", testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, env.logs.gotLimit)
	logs := decode(t, w)["logs"].([]any)
	require.Len(t, logs, 1)

	w = env.do(http.MethodGet, "/import/logs?limit=5000", "", testKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, env.logs.gotLimit)

	w = env.do(http.MethodGet, "/import/logs?limit=abc", "", testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/import/status", "", testKey)
	require.Equal(t, http.StatusOK, w.Code)
	sources := decode(t, w)["sources"].([]any)
	require.Len(t, sources, 1)
	row := sources[0].(map[string]any)
	assert.Equal(t, "osonish", row["source"])
	assert.EqualValues(t, 7, row["active"])
	assert.EqualValues(t, 10, row["total"])
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "6f1c1f4e-3c55-4f43-9b55-5e8d3f0b0a11")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "6f1c1f4e-3c55-4f43-9b55-5e8d3f0b0a11", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/import/sync", nil)
	req.Header.Set("Origin", "https://admin.example.uz")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	// preflight is answered before the key check
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example.uz", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Import-Key")
}
