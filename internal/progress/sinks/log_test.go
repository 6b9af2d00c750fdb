package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/stage-progress/internal/progress"
	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

func TestLogSinkWritesOneEntryPerEvent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)

	require.NoError(t, sink.Consume(context.Background(), []reporter.Event{
		{RunID: runID, TS: time.Now(), Kind: reporter.EventRegistered, Stage: "0", Total: 5},
		{RunID: runID, TS: time.Now(), Kind: reporter.EventUpdated, Stage: "0", Total: 5, Completed: 2, Increment: 2},
	}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("stage event").All()
	require.Len(t, entries, 2)
	fields := entries[1].ContextMap()
	require.Equal(t, runUUID.String(), fields["run_id"])
	require.Equal(t, "STAGE_UPDATED", fields["kind"])
	require.Equal(t, int64(2), fields["completed"])
}
