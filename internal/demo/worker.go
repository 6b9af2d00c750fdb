// Package demo simulates a two-stage computation (an initialization pass
// followed by the main pass) that reports progress through a Reporter.
package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// Stage keys used by Worker.
const (
	StageInit = 0
	StageMain = 1
)

// ErrSimulatedFailure is returned when Worker.FailAt aborts the main stage.
var ErrSimulatedFailure = errors.New("simulated failure")

// Sleeper paces the simulated jobs.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Worker runs InitJobs initialization jobs and MainJobs main jobs.
type Worker struct {
	InitJobs  int
	MainJobs  int
	StepDelay time.Duration
	// FailAt aborts after this many main jobs when > 0.
	FailAt  int
	Sleeper Sleeper
	Logger  *zap.Logger
}

// Run registers both stages and works through them under a scope, so every
// visible bar is finalized even when the run fails or ctx is cancelled.
func (w Worker) Run(ctx context.Context, r *reporter.Reporter[int]) error {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := r.Register(StageInit, w.InitJobs, "initializing", nil); err != nil {
		return fmt.Errorf("register init stage: %w", err)
	}
	if err := r.Register(StageMain, w.MainJobs, "main computation {done}/{total}", nil); err != nil {
		return fmt.Errorf("register main stage: %w", err)
	}

	rates := reporter.NewRateTracker[int](nil)
	if err := r.RegisterCallback(StageMain, rates.Observe); err != nil {
		return fmt.Errorf("register rate callback: %w", err)
	}

	return r.ScopeAll().Run(func() error {
		for i := 0; i < w.InitJobs; i++ {
			if err := w.step(ctx); err != nil {
				return err
			}
			if err := r.Update(StageInit, 1, nil); err != nil {
				return fmt.Errorf("update init stage: %w", err)
			}
		}
		if err := r.ForceFinishWithDescription(StageInit, "initialized"); err != nil {
			return fmt.Errorf("finish init stage: %w", err)
		}

		for i := 1; i <= w.MainJobs; i++ {
			if err := w.step(ctx); err != nil {
				return err
			}
			if w.FailAt > 0 && i > w.FailAt {
				return fmt.Errorf("main job %d: %w", i, ErrSimulatedFailure)
			}
			if err := r.Update(StageMain, 1, reporter.Args{"done": i, "total": w.MainJobs}); err != nil {
				return fmt.Errorf("update main stage: %w", err)
			}
		}
		if rate, ok := rates.Rate(StageMain); ok {
			logger.Info("main computation throughput",
				zap.Float64("jobs_per_second", rate.PerSecond),
				zap.Duration("elapsed", rate.Elapsed),
			)
		}
		return nil
	})
}

func (w Worker) step(ctx context.Context) error {
	if w.Sleeper == nil {
		return ctx.Err()
	}
	if err := w.Sleeper.Sleep(ctx, w.StepDelay); err != nil {
		return fmt.Errorf("job interrupted: %w", err)
	}
	return nil
}
