package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stage-progress/internal/progress"
	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the stage lifecycle.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	start := time.Now()
	batch := []reporter.Event{
		{RunID: runID, TS: start, Kind: reporter.EventRegistered, Stage: "main", Total: 10},
		{RunID: runID, TS: start.Add(time.Second), Kind: reporter.EventUpdated, Stage: "main", Total: 10, Completed: 4, Increment: 4},
		{RunID: runID, TS: start.Add(2 * time.Second), Kind: reporter.EventOvershoot, Stage: "main", Total: 10, Completed: 4, Increment: 9},
		{RunID: runID, TS: start.Add(3 * time.Second), Kind: reporter.EventUpdated, Stage: "main", Total: 10, Completed: 6, Increment: 2},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.stagesRegistered))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stagesActive))
	require.InDelta(t, 6.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("main")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.overshoots.WithLabelValues("main")), 1e-9)

	require.NoError(t, sink.Consume(context.Background(), []reporter.Event{
		{RunID: runID, TS: start.Add(5 * time.Second), Kind: reporter.EventFinished, Stage: "main", Total: 10, Completed: 10},
	}))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.stagesFinished))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.stagesActive))
	require.Equal(t, 1, testutil.CollectAndCount(sink.stageDuration, "stage_progress_stage_duration_seconds"))
}

func TestPrometheusSinkReRegistrationCountsOnce(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []reporter.Event{
		{RunID: runID, TS: now, Kind: reporter.EventRegistered, Stage: "0", Total: 5},
		{RunID: runID, TS: now, Kind: reporter.EventRegistered, Stage: "0", Total: 8},
		{RunID: runID, TS: now, Kind: reporter.EventFinished, Stage: "1", Total: 3, Completed: 3},
	}))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.stagesRegistered))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stagesActive))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stagesFinished))
}

func TestNewPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
