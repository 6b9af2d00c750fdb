package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/internal/progress"
	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// LogSink emits structured logs for stage events. It is useful during
// development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []reporter.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", progress.RunUUID(evt)),
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", evt.Stage),
			zap.Int("completed", evt.Completed),
			zap.Int("total", evt.Total),
			zap.Int("increment", evt.Increment),
			zap.String("description", evt.Description),
			zap.Time("ts", evt.TS),
		}
		s.logger.Info("stage event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
