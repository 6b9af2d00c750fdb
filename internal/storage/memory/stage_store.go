// Package memory keeps stage progress history in process memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/stage-progress/internal/store"
)

// StageStore provides an in-memory store.StageRepository.
type StageStore struct {
	mu     sync.RWMutex
	stages map[stageKey]*entry
	seq    uint64
}

type stageKey struct {
	runID uuid.UUID
	stage string
}

type entry struct {
	rec store.StageRecord
	seq uint64
}

var _ store.StageRepository = (*StageStore)(nil)

// NewStageStore constructs an empty StageStore.
func NewStageStore() *StageStore {
	return &StageStore{stages: make(map[stageKey]*entry)}
}

// UpsertStage inserts the stage or resets it in place, keeping its position
// within the run.
func (s *StageStore) UpsertStage(_ context.Context, rec store.StageRecord) error {
	if rec.RunID == uuid.Nil || rec.Stage == "" {
		return fmt.Errorf("upsert stage: run id and stage are required")
	}
	if rec.Status == "" {
		rec.Status = store.StageRunning
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.RegisteredAt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stageKey{runID: rec.RunID, stage: rec.Stage}
	if e, ok := s.stages[key]; ok {
		e.rec = rec
		return nil
	}
	s.seq++
	s.stages[key] = &entry{rec: rec, seq: s.seq}
	return nil
}

// RecordProgress updates the completed count and description.
func (s *StageStore) RecordProgress(
	_ context.Context,
	runID uuid.UUID,
	stage string,
	completed int64,
	description string,
	at time.Time,
) error {
	return s.mutate(runID, stage, func(rec *store.StageRecord) {
		rec.Completed = completed
		rec.Description = description
		rec.UpdatedAt = at
	})
}

// AddOvershoots increments the overshoot counter.
func (s *StageStore) AddOvershoots(_ context.Context, runID uuid.UUID, stage string, delta int64, at time.Time) error {
	return s.mutate(runID, stage, func(rec *store.StageRecord) {
		rec.Overshoots += delta
		rec.UpdatedAt = at
	})
}

// FinishStage marks the stage finished.
func (s *StageStore) FinishStage(
	_ context.Context,
	runID uuid.UUID,
	stage string,
	completed int64,
	description string,
	at time.Time,
) error {
	return s.mutate(runID, stage, func(rec *store.StageRecord) {
		rec.Completed = completed
		rec.Description = description
		rec.Status = store.StageFinished
		rec.UpdatedAt = at
		finished := at
		rec.FinishedAt = &finished
	})
}

func (s *StageStore) mutate(runID uuid.UUID, stage string, fn func(*store.StageRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.stages[stageKey{runID: runID, stage: stage}]
	if !ok {
		return store.ErrNotFound
	}
	fn(&e.rec)
	return nil
}

// GetRun summarizes the stages recorded for runID.
func (s *StageStore) GetRun(_ context.Context, runID uuid.UUID) (store.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries()[runID]
	if !ok {
		return store.RunSummary{}, store.ErrNotFound
	}
	return *summary, nil
}

// ListRuns returns run summaries ordered by most recent activity.
func (s *StageStore) ListRuns(_ context.Context, limit, offset int) ([]store.RunSummary, error) {
	s.mu.RLock()
	all := s.summaries()
	s.mu.RUnlock()

	runs := make([]store.RunSummary, 0, len(all))
	for _, summary := range all {
		runs = append(runs, *summary)
	}
	slices.SortFunc(runs, func(a, b store.RunSummary) int {
		if c := b.LastUpdate.Compare(a.LastUpdate); c != 0 {
			return c
		}
		return slices.Compare(a.RunID[:], b.RunID[:])
	})
	return page(runs, limit, offset), nil
}

// ListStages returns the stages of runID in first-registration order.
func (s *StageStore) ListStages(_ context.Context, runID uuid.UUID, limit, offset int) ([]store.StageRecord, error) {
	s.mu.RLock()
	entries := make([]*entry, 0)
	for key, e := range s.stages {
		if key.runID == runID {
			entries = append(entries, &entry{rec: e.rec, seq: e.seq})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	records := make([]store.StageRecord, len(entries))
	for i, e := range entries {
		records[i] = e.rec
	}
	return page(records, limit, offset), nil
}

// summaries must be called with s.mu held.
func (s *StageStore) summaries() map[uuid.UUID]*store.RunSummary {
	out := make(map[uuid.UUID]*store.RunSummary)
	for key, e := range s.stages {
		summary, ok := out[key.runID]
		if !ok {
			summary = &store.RunSummary{RunID: key.runID, StartedAt: e.rec.RegisteredAt}
			out[key.runID] = summary
		}
		summary.Stages++
		if e.rec.Status == store.StageFinished {
			summary.FinishedStages++
		}
		if e.rec.RegisteredAt.Before(summary.StartedAt) {
			summary.StartedAt = e.rec.RegisteredAt
		}
		if e.rec.UpdatedAt.After(summary.LastUpdate) {
			summary.LastUpdate = e.rec.UpdatedAt
		}
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
