// Package app initializes and holds long-lived services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/api"
	"github.com/JakeFAU/stage-progress/internal/clock/system"
	"github.com/JakeFAU/stage-progress/internal/config"
	"github.com/JakeFAU/stage-progress/internal/display"
	"github.com/JakeFAU/stage-progress/internal/metrics"
	"github.com/JakeFAU/stage-progress/internal/progress"
	"github.com/JakeFAU/stage-progress/internal/progress/sinks"
	"github.com/JakeFAU/stage-progress/internal/storage/memory"
	"github.com/JakeFAU/stage-progress/internal/storage/postgres"
	"github.com/JakeFAU/stage-progress/internal/store"
	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// App holds the shared services built once at startup.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    *system.Clock
	registry *prometheus.Registry
	httpm    *metrics.HTTP
	repo     store.StageRepository
	display  reporter.Display
	hub      *progress.Hub
	runID    [16]byte

	closeRepo func()
}

// New wires the display, repository, sinks and event hub described by cfg.
// Progress bars are written to out. The caller owns logger.
func New(ctx context.Context, cfg config.Config, out io.Writer, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:       cfg,
		logger:    logger,
		clock:     system.New(),
		registry:  prometheus.NewRegistry(),
		closeRepo: func() {},
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.httpm = metrics.NewHTTP(a.registry)

	d, err := display.New(cfg.Display.Backend, out, cfg.Display.Width, logger.Named("display"))
	if err != nil {
		return nil, err
	}
	a.display = d

	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := postgres.NewStageStore(ctx, postgres.StageStoreConfig{
			DSN:             cfg.Store.DSN,
			MaxConns:        cfg.Store.MaxConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
			EnsureSchema:    cfg.Store.EnsureSchema,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.repo = pg
		a.closeRepo = pg.Close
		logger.Info("using postgres stage store")
	default:
		a.repo = memory.NewStageStore()
		logger.Info("using in-memory stage store")
	}

	eventSinks := []progress.Sink{sinks.NewStoreSink(a.repo, logger.Named("store_sink"))}
	if cfg.Metrics.Enabled {
		promSink, err := sinks.NewPrometheusSink(a.registry)
		if err != nil {
			a.closeRepo()
			return nil, err
		}
		eventSinks = append(eventSinks, promSink)
	}
	if cfg.Logging.Development {
		eventSinks = append(eventSinks, sinks.NewLogSink(logger.Named("events")))
	}

	runID, err := progress.NewRunID()
	if err != nil {
		a.closeRepo()
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a.runID = runID
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Hub.BufferSize,
		MaxBatchEvents: cfg.Hub.MaxBatchEvents,
		MaxBatchWait:   cfg.Hub.MaxBatchWait,
		SinkTimeout:    cfg.Hub.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         logger.Named("hub"),
	}, eventSinks...)
	return a, nil
}

// NewReporter builds a Reporter whose events flow into the app's hub.
func NewReporter[K comparable](a *App) *reporter.Reporter[K] {
	return reporter.New[K](reporter.Config{
		Threshold: a.cfg.Reporter.Threshold,
		Display:   a.display,
		Emitter:   a.hub,
		RunID:     a.runID,
		Clock:     a.clock,
		Logger:    a.logger.Named("reporter"),
		Disabled:  !a.cfg.Reporter.Enabled,
	})
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Clock returns the wall clock used for pacing and timestamps.
func (a *App) Clock() *system.Clock { return a.clock }

// Repository exposes the stage history store.
func (a *App) Repository() store.StageRepository { return a.repo }

// Registry exposes the Prometheus registry backing /metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// RunID returns the identifier stamped on this process's events.
func (a *App) RunID() [16]byte { return a.runID }

// Server builds the status API over the app's repository and registry.
func (a *App) Server() *api.Server {
	return api.NewServer(api.Options{
		Repo:        a.repo,
		Gatherer:    a.registry,
		HTTPMetrics: a.httpm,
		Logger:      a.logger.Named("api"),
	})
}

// Flush drains pending events into the sinks and stops the hub. Emit after
// Flush is a no-op.
func (a *App) Flush(ctx context.Context) error {
	return a.hub.Close(ctx)
}

// Close flushes the hub and releases the repository.
func (a *App) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.closeRepo()
	if err != nil {
		return fmt.Errorf("flush stage events: %w", err)
	}
	return nil
}
