package entity

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition is returned when a status change is not in Transitions.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidateTransition checks whether moving a record from current to target
// is allowed.
func ValidateTransition(current, target Status) error {
	allowed, ok := Transitions[string(current)]
	if !ok {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, current)
	}
	if !slices.Contains(allowed, string(target)) {
		return fmt.Errorf("%w: %q to %q is not allowed", ErrInvalidTransition, current, target)
	}
	return nil
}

// Valid reports whether s is a known record status.
func (s Status) Valid() bool {
	_, ok := Transitions[string(s)]
	return ok
}
