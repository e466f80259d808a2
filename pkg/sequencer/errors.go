package sequencer

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmissionPending is returned for any mutation while a terminal action is in flight.
	ErrSubmissionPending = errors.New("submission pending")

	// ErrFieldNotAccepted indicates the flow does not collect the given field.
	ErrFieldNotAccepted = errors.New("field not accepted by flow")

	// ErrStepOutOfRange indicates a step index outside [0, totalSteps).
	ErrStepOutOfRange = errors.New("step index out of range")

	// ErrStepNotVisited indicates a jump to a step the user has not reached yet.
	ErrStepNotVisited = errors.New("step not visited")

	// ErrFlowFinished indicates the flow already completed successfully.
	ErrFlowFinished = errors.New("flow already finished")

	// ErrDefinitionMismatch indicates a stored state does not fit the flow definition.
	ErrDefinitionMismatch = errors.New("state does not match flow definition")
)

// MessageSubmitFailed is shown when a submission fails without a usable message.
const MessageSubmitFailed = "Something went wrong. Please try again."

// FlowError wraps sequencer errors with the flow they occurred in.
type FlowError struct {
	Op     string
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// UserMessager is implemented by submission errors carrying a message that is
// safe to show next to a field.
type UserMessager interface {
	UserMessage() string
}

func submissionMessage(err error) string {
	var messager UserMessager
	if errors.As(err, &messager) && messager.UserMessage() != "" {
		return messager.UserMessage()
	}

	return MessageSubmitFailed
}

// IsUserError reports whether err is caused by a request the user can fix,
// as opposed to an internal failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrFieldNotAccepted) ||
		errors.Is(err, ErrStepOutOfRange) ||
		errors.Is(err, ErrStepNotVisited)
}

// IsConflict reports whether err is caused by the flow's current status.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSubmissionPending) ||
		errors.Is(err, ErrFlowFinished)
}
