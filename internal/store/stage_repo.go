// Package store declares interfaces for persisting stage progress.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("stage record not found")

// StageStatus mirrors the stage_runs status column.
type StageStatus string

// Stage statuses persisted in stage_runs.status.
const (
	StageRunning  StageStatus = "running"
	StageFinished StageStatus = "finished"
)

// StageRecord models one row of stage_runs: the latest known state of a
// stage within a run.
type StageRecord struct {
	RunID       uuid.UUID
	Stage       string
	Description string
	Total       int64
	Completed   int64
	Status      StageStatus
	// Overshoots counts updates rejected for exceeding Total.
	Overshoots   int64
	RegisteredAt time.Time
	UpdatedAt    time.Time
	// FinishedAt is nil until the stage is force-finished.
	FinishedAt *time.Time
}

// RunSummary aggregates the stages recorded for one run.
type RunSummary struct {
	RunID          uuid.UUID
	StartedAt      time.Time
	LastUpdate     time.Time
	Stages         int64
	FinishedStages int64
}

// StageRepository persists stage lifecycle snapshots.
type StageRepository interface {
	// UpsertStage inserts the stage or resets it when it is registered again.
	UpsertStage(ctx context.Context, rec StageRecord) error
	// RecordProgress stores the latest completed count and rendered description.
	RecordProgress(
		ctx context.Context,
		runID uuid.UUID,
		stage string,
		completed int64,
		description string,
		at time.Time,
	) error
	// AddOvershoots increments the rejected update counter.
	AddOvershoots(ctx context.Context, runID uuid.UUID, stage string, delta int64, at time.Time) error
	// FinishStage marks the stage finished with its final count and label.
	FinishStage(
		ctx context.Context,
		runID uuid.UUID,
		stage string,
		completed int64,
		description string,
		at time.Time,
	) error

	// GetRun loads one run summary or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (RunSummary, error)
	// ListRuns returns run summaries, most recent first.
	ListRuns(ctx context.Context, limit, offset int) ([]RunSummary, error)
	// ListStages returns the stages of one run in registration order.
	ListStages(ctx context.Context, runID uuid.UUID, limit, offset int) ([]StageRecord, error)
}
