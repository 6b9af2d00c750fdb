package display

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// Log reports progress as structured log entries.
type Log struct {
	logger *zap.Logger
	nextID atomic.Int64
}

type logBar struct {
	id     int64
	closed bool
	last   int
}

// NewLog wires a Zap logger to the Display interface.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Create logs the start of a stage.
func (l *Log) Create(total int, description string, _ reporter.DisplayOptions) (reporter.Handle, error) {
	bar := &logBar{id: l.nextID.Add(1)}
	l.logger.Info("stage started",
		zap.Int64("bar", bar.id),
		zap.String("description", description),
		zap.Int("total", total),
	)
	return bar, nil
}

// Refresh logs the current position.
func (l *Log) Refresh(h reporter.Handle, completed, total int, description string) error {
	bar, err := l.bar(h)
	if err != nil {
		return err
	}
	if bar.closed {
		return nil
	}
	bar.last = completed
	l.logger.Info("stage progress",
		zap.Int64("bar", bar.id),
		zap.String("description", description),
		zap.Int("completed", completed),
		zap.Int("total", total),
		zap.Int("percent", percent(completed, total)),
	)
	return nil
}

// Close logs the end of a stage once.
func (l *Log) Close(h reporter.Handle) error {
	bar, err := l.bar(h)
	if err != nil {
		return err
	}
	if bar.closed {
		return nil
	}
	bar.closed = true
	l.logger.Info("stage closed", zap.Int64("bar", bar.id), zap.Int("completed", bar.last))
	return nil
}

func (l *Log) bar(h reporter.Handle) (*logBar, error) {
	bar, ok := h.(*logBar)
	if !ok || bar == nil {
		return nil, fmt.Errorf("log display: foreign handle %T", h)
	}
	return bar, nil
}
