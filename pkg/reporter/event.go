package reporter

import (
	"errors"
	"fmt"
	"time"
)

// EventKind names the lifecycle transition an Event records.
type EventKind string

// Lifecycle transitions emitted for non-suppressed stages.
const (
	EventRegistered EventKind = "STAGE_REGISTERED"
	EventUpdated    EventKind = "STAGE_UPDATED"
	EventOvershoot  EventKind = "STAGE_OVERSHOOT"
	EventFinished   EventKind = "STAGE_FINISHED"
)

// Event is a flattened lifecycle record suitable for asynchronous consumers
// such as metrics exporters or persistent journals.
type Event struct {
	// RunID identifies the Reporter instance that produced the event.
	RunID [16]byte
	TS    time.Time
	Kind  EventKind
	// Stage is the stage key rendered with fmt.Sprint.
	Stage     string
	Total     int
	Completed int
	// Increment is the reported delta for updates and overshoots.
	Increment   int
	Description string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case EventRegistered, EventUpdated, EventOvershoot, EventFinished:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Total < 0 {
		return errors.New("total must be >= 0")
	}
	if e.Kind != EventOvershoot && e.Completed > e.Total {
		return errors.New("completed must be <= total")
	}
	return nil
}

// Emitter receives lifecycle events. Implementations must not block.
type Emitter interface {
	Emit(evt Event)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
