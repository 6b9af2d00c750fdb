package reporter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a negative total or increment, or a nil callback.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnregisteredStage reports an operation on a stage key that is not registered.
	ErrUnregisteredStage = errors.New("stage not registered")
	// ErrTemplate reports a description template that cannot be rendered with the
	// supplied arguments.
	ErrTemplate = errors.New("invalid description template")
)

func unregistered(stage any) error {
	return fmt.Errorf("%w: %v (register it first)", ErrUnregisteredStage, stage)
}

// OvershootWarning describes an update that would have pushed a stage past its
// registered total. The update is discarded; the stage is left untouched.
type OvershootWarning struct {
	Stage     any
	Completed int
	Increment int
	Total     int
}

func (w OvershootWarning) String() string {
	return fmt.Sprintf(
		"stage %v: caller reported more work than registered (%d + %d > %d)",
		w.Stage, w.Completed, w.Increment, w.Total,
	)
}
