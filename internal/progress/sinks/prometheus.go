package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// PrometheusSink exports stage progress metrics via Prometheus. It owns the
// collectors for stage lifecycle counters, completed units and overshoots.
type PrometheusSink struct {
	stagesRegistered prometheus.Counter
	stagesFinished   prometheus.Counter
	stagesActive     prometheus.Gauge
	stageDuration    prometheus.Histogram

	unitsCompleted *prometheus.CounterVec
	overshoots     *prometheus.CounterVec

	tracker *stageTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		stagesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stage_progress_stages_registered_total",
			Help: "Total stages registered for display.",
		}),
		stagesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stage_progress_stages_finished_total",
			Help: "Total stages force-finished.",
		}),
		stagesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stage_progress_stages_active",
			Help: "Stages registered but not yet finished.",
		}),
		stageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stage_progress_stage_duration_seconds",
			Help:    "Wall time from registration to finish.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		}),
		unitsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_progress_units_completed_total",
			Help: "Units of work acknowledged per stage.",
		}, []string{"stage"}),
		overshoots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_progress_overshoot_warnings_total",
			Help: "Updates dropped because they exceeded the registered total.",
		}, []string{"stage"}),
		tracker: newStageTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.stagesRegistered,
		s.stagesFinished,
		s.stagesActive,
		s.stageDuration,
		s.unitsCompleted,
		s.overshoots,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register stage collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []reporter.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt reporter.Event) {
	key := trackedStage{runID: evt.RunID, stage: evt.Stage}
	switch evt.Kind {
	case reporter.EventRegistered:
		s.stagesRegistered.Inc()
		if s.tracker.start(key, evt.TS) {
			s.stagesActive.Inc()
		}
	case reporter.EventUpdated:
		if evt.Increment > 0 {
			s.unitsCompleted.WithLabelValues(evt.Stage).Add(float64(evt.Increment))
		}
	case reporter.EventOvershoot:
		s.overshoots.WithLabelValues(evt.Stage).Inc()
	case reporter.EventFinished:
		s.stagesFinished.Inc()
		if started, ok := s.tracker.finish(key); ok {
			s.stagesActive.Dec()
			if d := evt.TS.Sub(started); d >= 0 {
				s.stageDuration.Observe(d.Seconds())
			}
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type trackedStage struct {
	runID [16]byte
	stage string
}

type stageTracker struct {
	mu      sync.Mutex
	started map[trackedStage]time.Time
}

func newStageTracker() *stageTracker {
	return &stageTracker{started: make(map[trackedStage]time.Time)}
}

// start records the registration time and reports whether the stage is new.
// Re-registration restarts the clock without counting a second active stage.
func (t *stageTracker) start(key trackedStage, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.started[key]
	t.started[key] = at
	return !exists
}

func (t *stageTracker) finish(key trackedStage) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.started[key]
	if ok {
		delete(t.started, key)
	}
	return at, ok
}
