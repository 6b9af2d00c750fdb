package app_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/app"
	"github.com/JakeFAU/stage-progress/internal/config"
	"github.com/JakeFAU/stage-progress/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Logging.Development = false
	cfg.Hub.MaxBatchWait = 10 * time.Millisecond
	return cfg
}

func TestNewAppRecordsReporterEvents(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	a, err := app.New(context.Background(), testConfig(t), &out, zap.NewNop())
	require.NoError(t, err)

	r := app.NewReporter[string](a)
	require.NoError(t, r.Register("load", 5, "loading", nil))
	require.NoError(t, r.Update("load", 5, nil))
	require.NoError(t, r.ForceFinish("load"))
	require.NoError(t, a.Close(context.Background()))

	require.Contains(t, out.String(), "loading: 100% |")
	stages, err := a.Repository().ListStages(context.Background(), uuid.UUID(a.RunID()), 0, 0)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	require.Equal(t, store.StageFinished, stages[0].Status)
}

func TestNewAppDisabledReporter(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Reporter.Enabled = false
	a, err := app.New(context.Background(), cfg, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	r := app.NewReporter[int](a)
	require.NoError(t, r.Register(0, 100, "ignored", nil))
	require.Zero(t, r.NumRegistered())
}

func TestNewAppRejectsUnknownDisplay(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Display.Backend = "curses"
	_, err := app.New(context.Background(), cfg, nil, nil)
	require.Error(t, err)
}

func TestAppServerExposesMetrics(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	srv := a.Server()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stage_progress_stages_active")
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
