package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record or group does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRefusedTransition is returned when the capture session refuses an event in its current state.
	ErrRefusedTransition = errors.New("transition refused")
	// ErrInsufficientVertices is returned when a save is requested before the kind's minimum vertex count.
	ErrInsufficientVertices = errors.New("not enough vertices")
	// ErrInvalidCoordinate is returned for out-of-range or non-finite coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidKind is returned when an annotation kind cannot be parsed.
	ErrInvalidKind = errors.New("invalid annotation kind")
	// ErrProtectedGroup is returned when deleting the default group.
	ErrProtectedGroup = errors.New("group cannot be deleted")
)

// TransitionError describes a refused session transition.
type TransitionError struct {
	State  string
	Event  string
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s refused in state %s", e.Event, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap exposes both ErrRefusedTransition and the underlying cause.
func (e *TransitionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRefusedTransition, e.Err}
	}
	return []error{ErrRefusedTransition}
}

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}
