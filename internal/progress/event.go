package progress

import (
	"github.com/google/uuid"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// NewRunID returns a fresh time-ordered run identifier in the Event form.
func NewRunID() ([16]byte, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return [16]byte{}, err
	}
	return UUIDToBytes(id), nil
}

// RunUUID converts the binary run ID of an event to uuid.UUID for repositories.
func RunUUID(evt reporter.Event) uuid.UUID {
	return uuid.UUID(evt.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
