package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/internal/exporter"
	"github.com/vanshika/quickpay/internal/graph"
	"github.com/vanshika/quickpay/internal/logging"
	"github.com/vanshika/quickpay/internal/metrics"
	"github.com/vanshika/quickpay/internal/pipeline"
	"github.com/vanshika/quickpay/internal/quality"
	"github.com/vanshika/quickpay/internal/repository"
)

type stubLauncher struct {
	result *pipeline.Result
	err    error
	got    string
}

func (s *stubLauncher) Names() []string {
	return []string{pipeline.FlowDailyMetrics, pipeline.FlowBIRefresh}
}

func (s *stubLauncher) Launch(_ context.Context, name string) (*pipeline.Result, error) {
	s.got = name
	if name == "nightly" {
		return nil, pipeline.ErrUnknownFlow
	}
	return s.result, s.err
}

type stubProbe struct{ err error }

func (p stubProbe) Probe(context.Context) error { return p.err }

type fixture struct {
	reportDir string
	exportDir string
	launcher  *stubLauncher
	graph     *graph.MemoryClient
	handler   http.Handler
}

func newFixture(t *testing.T, health HealthService, withGraph bool) *fixture {
	t.Helper()
	f := &fixture{
		reportDir: t.TempDir(),
		exportDir: t.TempDir(),
		launcher:  &stubLauncher{result: &pipeline.Result{RunID: "run-1", Flow: pipeline.FlowBIRefresh, Status: pipeline.StepStatusCompleted}},
	}
	var insights GraphInsights
	if withGraph {
		f.graph = graph.NewMemoryClient()
		insights = repository.New(f.graph)
	}
	logger := logging.Discard()
	api := NewAPIHandlers(logger, f.reportDir, exporter.New(f.exportDir, logger, nil), f.launcher, insights)
	f.handler = NewRouter(logger, RouterDependencies{Health: health, API: api, Metrics: metrics.New().Handler()})
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	rec := newFixture(t, Probes{stubProbe{}, GraphHealth{}}, false).do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = newFixture(t, Probes{stubProbe{}, stubProbe{err: errors.New("warehouse: connection refused")}}, false).do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["error"], "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(t, nil, false).do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLatestQualityReport(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodGet, "/api/quality/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	report := quality.Report{RunTimestamp: time.Date(2026, 2, 12, 6, 0, 0, 0, time.UTC), TotalChecks: 10, Passed: 8, Failed: 2, QualityScore: 80}
	_, err := quality.SaveReport(f.reportDir, report)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/quality/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var body qualityReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, quality.LevelWarning, body.Level)
	assert.Equal(t, 80.0, body.Report.QualityScore)
	assert.NotEmpty(t, body.File)
}

func TestDownloadExport(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodGet, "/api/exports/revenue")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/exports/funnel_data")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "has not been generated")

	require.NoError(t, os.WriteFile(filepath.Join(f.exportDir, "funnel_data.csv"), []byte("step,users\nStep 1: Signup Started,100\n"), 0o644))
	rec = f.do(t, http.MethodGet, "/api/exports/funnel_data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "funnel_data.csv")
	assert.Contains(t, rec.Body.String(), "Step 1: Signup Started")
}

func TestRunFlow(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodPost, "/api/flows/bi-refresh/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bi-refresh", f.launcher.got)
	assert.Equal(t, "run-1", decode(t, rec)["run_id"])

	rec = f.do(t, http.MethodPost, "/api/flows/nightly/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.launcher.result = &pipeline.Result{RunID: "run-2", Status: pipeline.StepStatusFailed, Error: "flow step failed: export_views: disk full"}
	f.launcher.err = pipeline.ErrStepFailed
	rec = f.do(t, http.MethodPost, "/api/flows/bi-refresh/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed", decode(t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/flows/bi-refresh/runs")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListFlows(t *testing.T) {
	rec := newFixture(t, nil, false).do(t, http.MethodGet, "/api/flows")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"daily-metrics", "bi-refresh"}, decode(t, rec)["flows"])
}

func TestGraphEndpoints(t *testing.T) {
	rec := newFixture(t, nil, false).do(t, http.MethodGet, "/api/graph/top-merchants")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f := newFixture(t, nil, true)
	f.graph.PushReadResult(graph.Result{Records: []graph.Record{
		{"deviceId": "d1", "model": "Galaxy S24", "userIds": []any{"u1", "u2"}},
	}})
	rec = f.do(t, http.MethodGet, "/api/graph/shared-devices?min_users=3&limit=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	devices := decode(t, rec)["devices"].([]any)
	require.Len(t, devices, 1)

	params := f.graph.Reads()[0].Params
	assert.Equal(t, 3, params["minUsers"])
	assert.Equal(t, 20, params["limit"])
}

func TestCORS(t *testing.T) {
	logger := logging.Discard()
	handler := NewRouter(logger, RouterDependencies{AllowedOrigins: []string{"https://bi.quickpay.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://bi.quickpay.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://bi.quickpay.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
