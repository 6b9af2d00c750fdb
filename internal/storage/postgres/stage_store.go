// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/stage-progress/internal/store"
)

// Schema creates the stage_runs table used by StageStore.
const Schema = `
CREATE TABLE IF NOT EXISTS stage_runs (
	run_id        UUID        NOT NULL,
	stage         TEXT        NOT NULL,
	description   TEXT        NOT NULL DEFAULT '',
	total         BIGINT      NOT NULL,
	completed     BIGINT      NOT NULL DEFAULT 0,
	overshoots    BIGINT      NOT NULL DEFAULT 0,
	status        TEXT        NOT NULL,
	first_seen_at TIMESTAMPTZ NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	PRIMARY KEY (run_id, stage)
);`

// StageStoreConfig controls the Postgres connection pool.
type StageStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// EnsureSchema runs Schema after connecting.
	EnsureSchema bool
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// StageStore implements store.StageRepository using Postgres.
type StageStore struct {
	pool pool
}

var _ store.StageRepository = (*StageStore)(nil)

// NewStageStore connects to Postgres using cfg.
func NewStageStore(ctx context.Context, cfg StageStoreConfig) (*StageStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &StageStore{pool: p}
	if cfg.EnsureSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewStageStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStageStoreWithPool(p pool) (*StageStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StageStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *StageStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates stage_runs if it does not exist.
func (s *StageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create stage_runs: %w", err)
	}
	return nil
}

// UpsertStage inserts a stage or resets it on re-registration. first_seen_at
// is kept so listing order stays stable.
func (s *StageStore) UpsertStage(ctx context.Context, rec store.StageRecord) error {
	if rec.RunID == uuid.Nil || rec.Stage == "" {
		return fmt.Errorf("upsert stage: run id and stage are required")
	}
	status := rec.Status
	if status == "" {
		status = store.StageRunning
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = rec.RegisteredAt
	}
	query := `
		INSERT INTO stage_runs (
			run_id, stage, description, total, completed, overshoots, status,
			first_seen_at, registered_at, updated_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10)
		ON CONFLICT (run_id, stage) DO UPDATE
		SET description = EXCLUDED.description,
			total = EXCLUDED.total,
			completed = EXCLUDED.completed,
			overshoots = EXCLUDED.overshoots,
			status = EXCLUDED.status,
			registered_at = EXCLUDED.registered_at,
			updated_at = EXCLUDED.updated_at,
			finished_at = EXCLUDED.finished_at;
	`
	_, err := s.pool.Exec(ctx, query,
		rec.RunID,
		rec.Stage,
		rec.Description,
		rec.Total,
		rec.Completed,
		rec.Overshoots,
		string(status),
		rec.RegisteredAt,
		updated,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stage: %w", err)
	}
	return nil
}

// RecordProgress stores the latest completed count and description.
func (s *StageStore) RecordProgress(
	ctx context.Context,
	runID uuid.UUID,
	stage string,
	completed int64,
	description string,
	at time.Time,
) error {
	query := `
		UPDATE stage_runs
		SET completed = $1, description = $2, updated_at = $3
		WHERE run_id = $4 AND stage = $5;
	`
	return s.update(ctx, "record progress", query, completed, description, at, runID, stage)
}

// AddOvershoots increments the overshoot counter by delta.
func (s *StageStore) AddOvershoots(
	ctx context.Context,
	runID uuid.UUID,
	stage string,
	delta int64,
	at time.Time,
) error {
	query := `
		UPDATE stage_runs
		SET overshoots = overshoots + $1, updated_at = $2
		WHERE run_id = $3 AND stage = $4;
	`
	return s.update(ctx, "add overshoots", query, delta, at, runID, stage)
}

// FinishStage marks the stage finished.
func (s *StageStore) FinishStage(
	ctx context.Context,
	runID uuid.UUID,
	stage string,
	completed int64,
	description string,
	at time.Time,
) error {
	query := `
		UPDATE stage_runs
		SET completed = $1, description = $2, status = $3, updated_at = $4, finished_at = $4
		WHERE run_id = $5 AND stage = $6;
	`
	return s.update(ctx, "finish stage", query,
		completed, description, string(store.StageFinished), at, runID, stage)
}

func (s *StageStore) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const runSummaryColumns = `
	run_id,
	MIN(registered_at),
	MAX(updated_at),
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'finished')
`

// GetRun aggregates the stages recorded for runID.
func (s *StageStore) GetRun(ctx context.Context, runID uuid.UUID) (store.RunSummary, error) {
	query := `SELECT ` + runSummaryColumns + `
		FROM stage_runs
		WHERE run_id = $1
		GROUP BY run_id;
	`
	var run store.RunSummary
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.StartedAt,
		&run.LastUpdate,
		&run.Stages,
		&run.FinishedStages,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.RunSummary{}, store.ErrNotFound
		}
		return store.RunSummary{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns run summaries ordered by most recent activity.
func (s *StageStore) ListRuns(ctx context.Context, limit, offset int) ([]store.RunSummary, error) {
	query := `SELECT ` + runSummaryColumns + `
		FROM stage_runs
		GROUP BY run_id
		ORDER BY MAX(updated_at) DESC, run_id
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.pool.Query(ctx, query, limitArg(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.RunSummary{}
	for rows.Next() {
		var run store.RunSummary
		if err := rows.Scan(
			&run.RunID,
			&run.StartedAt,
			&run.LastUpdate,
			&run.Stages,
			&run.FinishedStages,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// ListStages returns the stages of runID ordered by first registration.
func (s *StageStore) ListStages(
	ctx context.Context,
	runID uuid.UUID,
	limit,
	offset int,
) ([]store.StageRecord, error) {
	query := `
		SELECT run_id, stage, description, total, completed, overshoots, status,
			registered_at, updated_at, finished_at
		FROM stage_runs
		WHERE run_id = $1
		ORDER BY first_seen_at, stage
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, runID, limitArg(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	stages := []store.StageRecord{}
	for rows.Next() {
		var (
			rec    store.StageRecord
			status string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Stage,
			&rec.Description,
			&rec.Total,
			&rec.Completed,
			&rec.Overshoots,
			&status,
			&rec.RegisteredAt,
			&rec.UpdatedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", err)
		}
		rec.Status = store.StageStatus(status)
		stages = append(stages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stages: %w", err)
	}
	return stages, nil
}

// limitArg maps a non-positive limit to NULL, which Postgres treats as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
