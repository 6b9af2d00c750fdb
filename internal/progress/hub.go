package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// Config tunes how stage events travel from a Reporter to the sinks.
//   - BufferSize: stage events held while sinks are busy (default 1024).
//   - MaxBatchEvents: hand a batch to the sinks once it holds this many
//     events (default 256).
//   - MaxBatchWait: longest a registered or updated stage waits before its
//     event is delivered (default 250ms).
//   - SinkTimeout: deadline for one sink to consume one batch (default 5s).
//   - BaseContext: parent of every sink call (context.Background() if nil).
//   - Logger: receives dropped-event and sink failure warnings.
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	BaseContext    context.Context
	Logger         *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 256
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 5 * time.Second
	dropLogInterval       = 5 * time.Second
)

// Hub is the reporter.Emitter that carries stage lifecycle events (register,
// update, overshoot, finish) to persistence and metrics sinks. The Reporter
// runs on the computation's goroutine, so Emit only enqueues; delivery
// happens on the Hub's own goroutine in the order events were emitted.
type Hub struct {
	cfg         Config
	sinks       []Sink
	events      chan reporter.Event
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *zap.Logger
	dropLog     *rate.Sometimes
	dropped     atomic.Int64
	closed      atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts delivering stage events to sinks. Sinks see every batch in
// the order they are listed.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:         cfg,
		sinks:       append([]Sink(nil), sinks...),
		events:      make(chan reporter.Event, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
		dropLog:     &rate.Sometimes{Interval: dropLogInterval},
	}
	go h.run()
	return h
}

// Emit queues a stage event for delivery. A full buffer drops the event; the
// drop count is logged at most once per dropLogInterval, tagged with the
// stage whose event triggered the log.
func (h *Hub) Emit(evt reporter.Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid stage event",
			zap.String("stage", evt.Stage),
			zap.String("kind", string(evt.Kind)),
			zap.Error(err),
		)
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		h.dropLog.Do(func() {
			h.logger.Warn("stage events dropped; sinks are behind the reporter",
				zap.Int64("dropped", h.dropped.Swap(0)),
				zap.String("stage", evt.Stage),
				zap.String("kind", string(evt.Kind)),
			)
		})
	}
}

// Close stops accepting events, delivers everything already queued (so the
// final STAGE_FINISHED events reach the store) and closes the sinks. It
// blocks until delivery is done or ctx expires. Later calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	batch := make([]reporter.Event, 0, h.cfg.MaxBatchEvents)
	timer := time.NewTimer(h.cfg.MaxBatchWait)
	timer.Stop()
	timerActive := false
	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			if len(batch) >= h.cfg.MaxBatchEvents {
				h.flush(batch)
				batch = batch[:0]
				stopTimer(timer, &timerActive)
			} else if !timerActive {
				timer.Reset(h.cfg.MaxBatchWait)
				timerActive = true
			}
		case <-timer.C:
			timerActive = false
			if len(batch) > 0 {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-h.stopCh:
			stopTimer(timer, &timerActive)
			h.drain(batch)
			return
		}
	}
}

func (h *Hub) drain(batch []reporter.Event) {
	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			if len(batch) >= h.cfg.MaxBatchEvents {
				h.flush(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				h.flush(batch)
			}
			h.closeSinks()
			return
		}
	}
}

func stopTimer(timer *time.Timer, timerActive *bool) {
	if !*timerActive {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	*timerActive = false
}

func (h *Hub) flush(batch []reporter.Event) {
	if len(batch) == 0 {
		return
	}
	events := append([]reporter.Event(nil), batch...)
	for i, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, events); err != nil {
			h.logger.Warn("stage sink rejected batch",
				zap.Int("sink", i),
				zap.Int("events", len(events)),
				zap.Strings("stages", batchStages(events)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("stage sink close failed", zap.Error(err))
		}
	}
}

// batchStages lists the distinct stages in events, in first-seen order.
func batchStages(events []reporter.Event) []string {
	seen := make(map[string]struct{}, len(events))
	var stages []string
	for _, evt := range events {
		if _, ok := seen[evt.Stage]; ok {
			continue
		}
		seen[evt.Stage] = struct{}{}
		stages = append(stages, evt.Stage)
	}
	return stages
}
