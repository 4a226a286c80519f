package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Validation errors are reported synchronously at admission;
// capability failures are recovered at the orchestration level.
var (
	ErrInvalidRecord        = errors.New("invalid record")
	ErrDuplicateIdentifier  = errors.New("duplicate identifier")
	ErrNotFound             = errors.New("not found")
	ErrUnknownItem          = errors.New("unknown item")
	ErrEmptyQueue           = errors.New("task queue empty")
	ErrInsufficientCapacity = errors.New("insufficient battery capacity")

	// ErrInconsistentIndex means the inventory list and index views diverged.
	// It indicates a bug and must never be masked.
	ErrInconsistentIndex = errors.New("inventory index inconsistent")
)

// CapabilityError wraps a navigate/sense/grip failure reported by a
// capability provider.
type CapabilityError struct {
	Op     string
	Reason string
}

func (e CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed: %s", e.Op, e.Reason)
}
