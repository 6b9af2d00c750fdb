package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/metrics"
	"github.com/JakeFAU/stage-progress/internal/progress"
	"github.com/JakeFAU/stage-progress/internal/progress/sinks"
	"github.com/JakeFAU/stage-progress/internal/storage/memory"
	"github.com/JakeFAU/stage-progress/internal/store"
	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{Gatherer: prometheus.NewRegistry(), Logger: zap.NewNop()})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerRoutesStagesFromReporter(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	require.NoError(t, err)
	repo := memory.NewStageStore()
	hub := progress.NewHub(progress.Config{}, sinks.NewStoreSink(repo, nil), promSink)
	runID, err := progress.NewRunID()
	require.NoError(t, err)

	r := reporter.New[string](reporter.Config{Emitter: hub, RunID: runID})
	require.NoError(t, r.Register("download", 10, "fetching", nil))
	require.NoError(t, r.Update("download", 4, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	server := NewServer(Options{
		Repo:        repo,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTP(reg),
	})
	id := uuid.UUID(runID).String()

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"/stages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"stage":"download"`)
	require.Contains(t, rec.Body.String(), `"completed":4`)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"stages":1`)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stage_progress_units_completed_total")
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServerRecoversFromPanics(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{Repo: &panickingRepo{}, Gatherer: prometheus.NewRegistry()})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickingRepo struct {
	failingRepo
}

func (p *panickingRepo) ListRuns(context.Context, int, int) ([]store.RunSummary, error) {
	panic("boom")
}
