package reporter

import "time"

// Rate is a throughput estimate for one stage.
type Rate struct {
	// PerSecond is the average number of units acknowledged per second.
	PerSecond float64
	Elapsed   time.Duration
	// ETA is the estimated time until the registered total is reached. It is
	// zero while no throughput has been observed.
	ETA time.Duration
}

type rateSample struct {
	at        time.Time
	completed int
	last      int
	rate      Rate
}

// RateTracker derives per-stage throughput and ETA from the dense stream of
// accepted updates. Register its Observe method as a Callback.
type RateTracker[K comparable] struct {
	clock   Clock
	samples map[K]*rateSample
}

// NewRateTracker returns a RateTracker that timestamps samples with clock
// (UTC wall clock when nil).
func NewRateTracker[K comparable](clock Clock) *RateTracker[K] {
	if clock == nil {
		clock = systemClock{}
	}
	return &RateTracker[K]{clock: clock, samples: make(map[K]*rateSample)}
}

// Observe records one accepted update. It never fails.
func (t *RateTracker[K]) Observe(stage K, state State[K], _ Args) error {
	now := t.clock.Now()
	s, ok := t.samples[stage]
	if !ok || state.Completed < s.last {
		// First sample, or the stage was registered again.
		t.samples[stage] = &rateSample{at: now, completed: state.Completed, last: state.Completed}
		return nil
	}
	s.last = state.Completed
	elapsed := now.Sub(s.at)
	done := state.Completed - s.completed
	s.rate = Rate{Elapsed: elapsed}
	if elapsed <= 0 || done <= 0 {
		return nil
	}
	s.rate.PerSecond = float64(done) / elapsed.Seconds()
	remaining := state.Remaining()
	s.rate.ETA = time.Duration(float64(remaining) / s.rate.PerSecond * float64(time.Second))
	return nil
}

// Rate returns the latest estimate for stage.
func (t *RateTracker[K]) Rate(stage K) (Rate, bool) {
	s, ok := t.samples[stage]
	if !ok {
		return Rate{}, false
	}
	return s.rate, true
}

// Forget drops the samples of stage.
func (t *RateTracker[K]) Forget(stage K) {
	delete(t.samples, stage)
}
