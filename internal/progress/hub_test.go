package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(reporter.EventRegistered))
	hub.Emit(sampleEvent(reporter.EventUpdated))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(reporter.EventRegistered))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan reporter.Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(reporter.EventRegistered))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubDiscardsInvalidEvents ensures malformed events never reach sinks.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchWait: time.Minute}, sink)
	hub.Emit(reporter.Event{Kind: reporter.EventUpdated})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
	require.True(t, sink.closed)
}

// TestHubFlushOnClose ensures Close drains buffered events and closes sinks.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	hub.Emit(sampleEvent(reporter.EventFinished))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
	require.True(t, sink.closed)

	// Emit after Close is ignored.
	hub.Emit(sampleEvent(reporter.EventFinished))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

// TestHubFedByReporter wires a Reporter to the hub end to end.
func TestHubFedByReporter(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchWait: time.Minute}, sink)
	runID, err := NewRunID()
	require.NoError(t, err)

	r := reporter.New[string](reporter.Config{Emitter: hub, RunID: runID})
	require.NoError(t, r.Register("init", 10, "initializing", nil))
	require.NoError(t, r.Register("tiny", 1, "suppressed", nil))
	require.NoError(t, r.Update("init", 5, nil))
	require.NoError(t, r.ScopeAll().Close())
	require.NoError(t, hub.Close(context.Background()))

	var kinds []reporter.EventKind
	for _, batch := range sink.Batches() {
		for _, evt := range batch {
			require.Equal(t, "init", evt.Stage)
			require.Equal(t, runID, evt.RunID)
			kinds = append(kinds, evt.Kind)
		}
	}
	require.Equal(t, []reporter.EventKind{
		reporter.EventRegistered,
		reporter.EventUpdated,
		reporter.EventFinished,
	}, kinds)
}

// TestHubLogsStagesOfRejectedBatch checks a failing sink is reported with the stages it lost
// and does not stop delivery to the sinks after it.
func TestHubLogsStagesOfRejectedBatch(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	good := newStubSink()
	hub := NewHub(Config{MaxBatchWait: time.Minute, Logger: zap.New(core)},
		failingSink{err: errors.New("store offline")}, good)

	first := sampleEvent(reporter.EventRegistered)
	first.Stage = "init"
	second := sampleEvent(reporter.EventUpdated)
	second.Stage = "main"
	third := sampleEvent(reporter.EventUpdated)
	third.Stage = "init"
	hub.Emit(first)
	hub.Emit(second)
	hub.Emit(third)
	require.NoError(t, hub.Close(context.Background()))

	entries := logs.FilterMessage("stage sink rejected batch").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.EqualValues(t, 0, fields["sink"])
	require.EqualValues(t, 3, fields["events"])
	require.Equal(t, []interface{}{"init", "main"}, fields["stages"])

	batches := good.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
}

type failingSink struct {
	err error
}

func (f failingSink) Consume(context.Context, []reporter.Event) error { return f.err }

func (failingSink) Close(context.Context) error { return nil }

type stubSink struct {
	mu      sync.Mutex
	batches [][]reporter.Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]reporter.Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []reporter.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]reporter.Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]reporter.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]reporter.Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]reporter.Event(nil), b...)
	}
	return out
}

func sampleEvent(kind reporter.EventKind) reporter.Event {
	return reporter.Event{
		RunID:       [16]byte{1},
		TS:          time.Now(),
		Kind:        kind,
		Stage:       "0",
		Total:       10,
		Completed:   5,
		Description: "sample",
	}
}
