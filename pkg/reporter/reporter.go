package reporter

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// DefaultThreshold is the largest total for which a stage is suppressed.
const DefaultThreshold = 2

// Config controls a Reporter.
//   - Threshold: stages with total <= Threshold get no display and inert
//     updates. Zero selects DefaultThreshold; a negative value suppresses nothing.
//   - Display: backend used for non-suppressed stages (defaults to Nop).
//   - Emitter: optional non-blocking sink for lifecycle events.
//   - RunID: stamped on every emitted Event.
//   - Clock: timestamps for events (defaults to UTC wall clock).
//   - Logger: optional structured logger; overshoot warnings are logged here.
//   - OnWarning: optional hook invoked for every overshoot warning.
//   - Disabled: start with the kill switch off.
type Config struct {
	Threshold int
	Display   Display
	Emitter   Emitter
	RunID     [16]byte
	Clock     Clock
	Logger    *zap.Logger
	OnWarning func(OvershootWarning)
	Disabled  bool
}

// Reporter is the stage registry. The zero value is not usable; construct one
// with New.
type Reporter[K comparable] struct {
	enabled   bool
	threshold int
	display   Display
	emitter   Emitter
	runID     [16]byte
	clock     Clock
	logger    *zap.Logger
	onWarning func(OvershootWarning)

	stages    map[K]*stage[K]
	callbacks map[K][]Callback[K]
	seq       uint64
}

// New builds a Reporter from cfg.
func New[K comparable](cfg Config) *Reporter[K] {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	display := cfg.Display
	if display == nil {
		display = Nop{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter[K]{
		enabled:   !cfg.Disabled,
		threshold: threshold,
		display:   display,
		emitter:   cfg.Emitter,
		runID:     cfg.RunID,
		clock:     clock,
		logger:    logger,
		onWarning: cfg.OnWarning,
		stages:    make(map[K]*stage[K]),
		callbacks: make(map[K][]Callback[K]),
	}
}

// Enabled reports whether the kill switch is on.
func (r *Reporter[K]) Enabled() bool { return r.enabled }

// SetEnabled flips the kill switch. While disabled every operation is a no-op.
func (r *Reporter[K]) SetEnabled(enabled bool) { r.enabled = enabled }

// Register creates (or replaces) the stage with total units of work. Stages at
// or below the threshold are suppressed. The display handle is created on the
// first update or refresh. Replacing a stage closes the handle it already had.
func (r *Reporter[K]) Register(key K, total int, description string, opts DisplayOptions) error {
	if !r.enabled {
		return nil
	}
	if total < 0 {
		return fmt.Errorf("%w: total for stage %v must be >= 0, got %d", ErrInvalidArgument, key, total)
	}
	if prev, ok := r.stages[key]; ok {
		if err := r.closeView(prev); err != nil {
			return err
		}
	}

	r.seq++
	st := &stage[K]{
		key:      key,
		total:    total,
		template: description,
		label:    description,
		options:  opts,
		seq:      r.seq,
	}
	if total <= r.threshold {
		st.view = suppressedView{}
	} else {
		st.view = &activeView{}
	}
	r.stages[key] = st
	r.emit(EventRegistered, st, 0)
	return nil
}

// SetDescription replaces the stage's description template. A visible display
// is relabelled immediately.
func (r *Reporter[K]) SetDescription(key K, description string) error {
	if !r.enabled {
		return nil
	}
	st, ok := r.stages[key]
	if !ok {
		return unregistered(key)
	}
	st.template = description
	st.label = description
	if v, ok := st.view.(*activeView); ok && v.created && !v.closed {
		if err := r.display.Refresh(v.handle, st.completed, st.total, st.label); err != nil {
			return fmt.Errorf("refresh stage %v: %w", key, err)
		}
	}
	return nil
}

// Update acknowledges increment units of work on the stage. An update that
// would exceed the registered total is dropped and reported as an
// OvershootWarning. Accepted updates render the description with args,
// refresh the display and run the stage's callbacks in registration order.
func (r *Reporter[K]) Update(key K, increment int, args Args) error {
	if !r.enabled {
		return nil
	}
	st, ok := r.stages[key]
	if !ok {
		return unregistered(key)
	}
	v, ok := st.view.(*activeView)
	if !ok {
		return nil
	}
	if increment < 0 {
		return fmt.Errorf("%w: increment for stage %v must be >= 0, got %d", ErrInvalidArgument, key, increment)
	}
	// completed+increment may overflow int.
	if increment > st.total-st.completed {
		r.overshoot(st, increment)
		return nil
	}
	label, err := render(st.template, args)
	if err != nil {
		return fmt.Errorf("stage %v: %w", key, err)
	}

	st.completed += increment
	st.label = label
	if err := r.show(st, v); err != nil {
		return err
	}
	r.emit(EventUpdated, st, increment)
	return r.dispatch(st, args)
}

// Refresh redraws the stage without changing its counters.
func (r *Reporter[K]) Refresh(key K) error {
	if !r.enabled {
		return nil
	}
	st, ok := r.stages[key]
	if !ok {
		return unregistered(key)
	}
	if v, ok := st.view.(*activeView); ok {
		return r.show(st, v)
	}
	return nil
}

// ForceFinish completes the stage administratively, flushes the display at
// 100%, closes it and unregisters the stage together with its callbacks.
// Callbacks are not invoked for the final jump.
func (r *Reporter[K]) ForceFinish(key K) error {
	return r.forceFinish(key, nil)
}

// ForceFinishWithDescription is ForceFinish with a final label.
func (r *Reporter[K]) ForceFinishWithDescription(key K, description string) error {
	return r.forceFinish(key, &description)
}

func (r *Reporter[K]) forceFinish(key K, description *string) error {
	if !r.enabled {
		return nil
	}
	st, ok := r.stages[key]
	if !ok {
		return unregistered(key)
	}
	defer r.forget(key)

	v, ok := st.view.(*activeView)
	if !ok {
		return nil
	}
	if st.completed < st.total {
		st.completed = st.total
	}
	if description != nil {
		st.template = *description
		st.label = *description
	}
	// The handle is closed even if the final redraw fails.
	showErr := r.show(st, v)
	closeErr := r.closeView(st)
	r.emit(EventFinished, st, 0)
	return errors.Join(showErr, closeErr)
}

// NumRegistered returns the number of registered stages.
func (r *Reporter[K]) NumRegistered() int {
	return len(r.stages)
}

// RegisteredStages returns the registered stage keys in registration order.
func (r *Reporter[K]) RegisteredStages() []K {
	all := make([]*stage[K], 0, len(r.stages))
	for _, st := range r.stages {
		all = append(all, st)
	}
	slices.SortFunc(all, func(a, b *stage[K]) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	keys := make([]K, len(all))
	for i, st := range all {
		keys[i] = st.key
	}
	return keys
}

// State returns a snapshot of the stage, or false if it is not registered.
func (r *Reporter[K]) State(key K) (State[K], bool) {
	st, ok := r.stages[key]
	if !ok {
		return State[K]{}, false
	}
	return st.snapshot(), true
}

// show lazily creates the stage's handle and redraws it.
func (r *Reporter[K]) show(st *stage[K], v *activeView) error {
	if v.closed {
		return nil
	}
	if !v.created {
		h, err := r.display.Create(st.total, st.label, st.options)
		if err != nil {
			return fmt.Errorf("create display for stage %v: %w", st.key, err)
		}
		v.handle = h
		v.created = true
	}
	if err := r.display.Refresh(v.handle, st.completed, st.total, st.label); err != nil {
		return fmt.Errorf("refresh stage %v: %w", st.key, err)
	}
	return nil
}

// closeView releases the stage's handle if one was created. It never calls
// Close twice for the same handle.
func (r *Reporter[K]) closeView(st *stage[K]) error {
	v, ok := st.view.(*activeView)
	if !ok || !v.created || v.closed {
		return nil
	}
	v.closed = true
	if err := r.display.Close(v.handle); err != nil {
		return fmt.Errorf("close display for stage %v: %w", st.key, err)
	}
	return nil
}

func (r *Reporter[K]) forget(key K) {
	delete(r.stages, key)
	delete(r.callbacks, key)
}

func (r *Reporter[K]) overshoot(st *stage[K], increment int) {
	w := OvershootWarning{
		Stage:     st.key,
		Completed: st.completed,
		Increment: increment,
		Total:     st.total,
	}
	r.logger.Warn("more work reported than registered",
		zap.Any("stage", st.key),
		zap.Int("completed", st.completed),
		zap.Int("increment", increment),
		zap.Int("total", st.total),
	)
	if r.onWarning != nil {
		r.onWarning(w)
	}
	r.emit(EventOvershoot, st, increment)
}

func (r *Reporter[K]) emit(kind EventKind, st *stage[K], increment int) {
	if r.emitter == nil {
		return
	}
	if _, suppressed := st.view.(suppressedView); suppressed {
		return
	}
	r.emitter.Emit(Event{
		RunID:       r.runID,
		TS:          r.clock.Now(),
		Kind:        kind,
		Stage:       fmt.Sprint(st.key),
		Total:       st.total,
		Completed:   st.completed,
		Increment:   increment,
		Description: st.label,
	})
}
