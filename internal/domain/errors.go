package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for unknown or purged session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned for illegal lifecycle requests.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidConfig is returned when a session config fails validation.
	ErrInvalidConfig = errors.New("invalid session config")
	// ErrAdmissionDenied is returned when the admission policy rejects a session.
	ErrAdmissionDenied = errors.New("admission denied")

	// ErrLogFrozen signals an append after the session reached a terminal status.
	// It is an invariant violation, never a user error.
	ErrLogFrozen = errors.New("append to frozen event log")
	// ErrCellOverflow signals a completion beyond a cell's expected total.
	ErrCellOverflow = errors.New("cell completion exceeds total")
)

// TransitionError describes a rejected lifecycle transition.
type TransitionError struct {
	From    SessionStatus
	Trigger string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from %s", e.Trigger, e.From)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
