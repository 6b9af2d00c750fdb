package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/progress"
	"github.com/JakeFAU/stage-progress/internal/store"
	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// StoreSink persists stage snapshots via a store.StageRepository. Updates
// within a batch are collapsed to the latest count per stage to reduce write
// amplification.
type StoreSink struct {
	repo   store.StageRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.StageRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order: registrations and finishes are written
// immediately, updates and overshoots are held and flushed once per stage. It
// respects ctx deadlines and returns repository errors wrapped with the
// operation that failed.
func (s *StoreSink) Consume(ctx context.Context, batch []reporter.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	p := newPendingSet()

	for _, evt := range batch {
		key := stageKey{runID: progress.RunUUID(evt), stage: evt.Stage}
		switch evt.Kind {
		case reporter.EventRegistered:
			// The registration resets the row; anything pending is stale.
			p.drop(key)
			rec := store.StageRecord{
				RunID:        key.runID,
				Stage:        key.stage,
				Description:  evt.Description,
				Total:        int64(evt.Total),
				Completed:    int64(evt.Completed),
				Status:       store.StageRunning,
				RegisteredAt: evt.TS,
				UpdatedAt:    evt.TS,
			}
			if err := s.repo.UpsertStage(ctx, rec); err != nil {
				return fmt.Errorf("upsert stage: %w", err)
			}
		case reporter.EventUpdated:
			d := p.get(key)
			d.update = true
			d.completed = int64(evt.Completed)
			d.description = evt.Description
			d.touch(evt.TS)
		case reporter.EventOvershoot:
			d := p.get(key)
			d.overshoots++
			d.touch(evt.TS)
		case reporter.EventFinished:
			if d, ok := p.deltas[key]; ok {
				d.update = false
				if err := s.flushDelta(ctx, key, d); err != nil {
					return err
				}
				p.drop(key)
			}
			err := s.repo.FinishStage(ctx, key.runID, key.stage, int64(evt.Completed), evt.Description, evt.TS)
			if err := s.tolerateMissing(err, key); err != nil {
				return fmt.Errorf("finish stage: %w", err)
			}
		}
	}

	for _, key := range p.order {
		d, ok := p.deltas[key]
		if !ok {
			continue
		}
		if err := s.flushDelta(ctx, key, d); err != nil {
			return err
		}
		p.drop(key)
	}
	return nil
}

func (s *StoreSink) flushDelta(ctx context.Context, key stageKey, d *stageDelta) error {
	if d.update {
		err := s.repo.RecordProgress(ctx, key.runID, key.stage, d.completed, d.description, d.at)
		if err := s.tolerateMissing(err, key); err != nil {
			return fmt.Errorf("record progress: %w", err)
		}
	}
	if d.overshoots > 0 {
		err := s.repo.AddOvershoots(ctx, key.runID, key.stage, d.overshoots, d.at)
		if err := s.tolerateMissing(err, key); err != nil {
			return fmt.Errorf("add overshoots: %w", err)
		}
	}
	return nil
}

// tolerateMissing swallows ErrNotFound: the hub may drop a registration
// under backpressure, leaving later events without a row.
func (s *StoreSink) tolerateMissing(err error, key stageKey) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("stage row missing; event skipped",
			zap.Stringer("run_id", key.runID),
			zap.String("stage", key.stage),
		)
		return nil
	}
	return err
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type stageKey struct {
	runID uuid.UUID
	stage string
}

type stageDelta struct {
	update      bool
	completed   int64
	description string
	overshoots  int64
	at          time.Time
}

func (d *stageDelta) touch(ts time.Time) {
	if ts.After(d.at) || d.at.IsZero() {
		d.at = ts
	}
}

// pendingSet keeps deltas in first-seen order so flushes are deterministic.
type pendingSet struct {
	deltas map[stageKey]*stageDelta
	order  []stageKey
}

func newPendingSet() *pendingSet {
	return &pendingSet{deltas: make(map[stageKey]*stageDelta)}
}

func (p *pendingSet) get(key stageKey) *stageDelta {
	d, ok := p.deltas[key]
	if !ok {
		d = &stageDelta{}
		p.deltas[key] = d
		p.order = append(p.order, key)
	}
	return d
}

func (p *pendingSet) drop(key stageKey) {
	delete(p.deltas, key)
}
