// Package services orchestrates sessions, flows and walkthroughs on top of the
// sequencer, the stores, the backend client and the event bus.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/lexflow/pkg/appstate"
	"github.com/dukex/lexflow/pkg/backend"
	"github.com/dukex/lexflow/pkg/flows"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/sequencer"
	"github.com/dukex/lexflow/pkg/walkthrough"
)

var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnknownFlowKind        = flows.ErrUnknownFlowKind
	ErrUnknownWalkthroughKind = flows.ErrUnknownWalkthroughKind

	// Not Found Errors (404).
	ErrFlowNotFound        = persistence.ErrFlowNotFound
	ErrSessionNotFound     = persistence.ErrSessionNotFound
	ErrWalkthroughNotFound = errors.New("walkthrough not found")

	// Upstream Errors (502).
	ErrCheckoutUnavailable = errors.New("checkout unavailable")

	// ErrSubmissionLost settles a pending submission whose task no longer runs.
	ErrSubmissionLost = errors.New("submission lost")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	ID      string // Flow, session or walkthrough id
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.Message)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}

	return &ServiceError{Op: op, ID: id, Err: err}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownFlowKind) ||
		errors.Is(err, ErrUnknownWalkthroughKind) ||
		errors.Is(err, models.ErrUnknownField) ||
		errors.Is(err, appstate.ErrInvalidPeriod) ||
		errors.Is(err, appstate.ErrInvalidModal) ||
		errors.Is(err, walkthrough.ErrStepOutOfRange) ||
		errors.Is(err, persistence.ErrInvalidID) ||
		sequencer.IsUserError(err)
}

// IsConflictError checks if an error is caused by the current state of a flow and should return HTTP 409.
func IsConflictError(err error) bool {
	return sequencer.IsConflict(err)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrWalkthroughNotFound)
}

// IsUpstreamError checks if an error comes from the backend and should return HTTP 502.
func IsUpstreamError(err error) bool {
	var httpErr *backend.HTTPError

	return errors.As(err, &httpErr) ||
		errors.Is(err, ErrCheckoutUnavailable) ||
		errors.Is(err, backend.ErrMissingCheckoutURL)
}
