package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrSessionNotFound indicates a session was not found by the given identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrInvalidID indicates an identifier that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid identifier")
)

// RecordError wraps storage errors with the operation and record involved.
type RecordError struct {
	Op   string // Operation being performed (e.g., "ByID", "Save", "Delete")
	Kind string // "session", "flow" or "audit"
	ID   string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewSessionError(op, id string, err error) *RecordError {
	return &RecordError{Op: op, Kind: "session", ID: id, Err: err}
}

func NewFlowError(op, id string, err error) *RecordError {
	return &RecordError{Op: op, Kind: "flow", ID: id, Err: err}
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}
