// Package sequencer implements the step state machine behind every guided
// flow: a bounded linear sequence of steps, the payload accumulated across
// them, validation gating forward movement and the hand-off of terminal
// actions to a caller-run submission.
//
// A Flow is not safe for concurrent use; callers serialize access per flow.
package sequencer

import (
	"fmt"
	"maps"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/validation"
	"github.com/jonboulle/clockwork"
)

type TransitionKind string

const (
	TransitionUpdated   TransitionKind = "updated"
	TransitionAdvanced  TransitionKind = "advanced"
	TransitionRetreated TransitionKind = "retreated"
	TransitionJumped    TransitionKind = "jumped"
	TransitionBlocked   TransitionKind = "blocked"
	TransitionSubmit    TransitionKind = "submit"
	TransitionCompleted TransitionKind = "completed"
	TransitionFailed    TransitionKind = "failed"
	TransitionReset     TransitionKind = "reset"
	TransitionNoop      TransitionKind = "noop"
)

// Transition describes what a navigator call did.
type Transition struct {
	Kind       TransitionKind
	From       int
	To         int
	Submission *Submission
}

// Submission is a terminal action the caller must run and report back through Settle.
type Submission struct {
	FlowID     string
	Generation uint64
	StepIndex  int
	Endpoint   string
	Payload    map[string]any
}

type Flow struct {
	def       *models.FlowDefinition
	state     *models.StepState
	validator *validation.Validator
	clock     clockwork.Clock
}

// New creates a flow at step 0.
func New(id string, def *models.FlowDefinition, validator *validation.Validator, clock clockwork.Clock) *Flow {
	now := clock.Now().UTC()

	return &Flow{
		def:       def,
		validator: validator,
		clock:     clock,
		state: &models.StepState{
			ID:         id,
			Kind:       def.Kind,
			TotalSteps: len(def.Steps),
			Payload:    make(map[models.Field]string),
			Errors:     make(map[models.Field]string),
			Terminal:   models.TerminalInProgress,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// Restore rebuilds a flow from a stored state.
func Restore(def *models.FlowDefinition, state *models.StepState, validator *validation.Validator, clock clockwork.Clock) (*Flow, error) {
	if state.Kind != def.Kind || state.TotalSteps != len(def.Steps) {
		return nil, &FlowError{Op: "Restore", FlowID: state.ID, Err: ErrDefinitionMismatch}
	}

	if state.CurrentIndex < 0 || state.CurrentIndex >= state.TotalSteps {
		return nil, &FlowError{Op: "Restore", FlowID: state.ID, Err: ErrStepOutOfRange}
	}

	return &Flow{
		def:       def,
		validator: validator,
		clock:     clock,
		state:     state.Clone(),
	}, nil
}

func (f *Flow) ID() string {
	return f.state.ID
}

func (f *Flow) Definition() *models.FlowDefinition {
	return f.def
}

// State returns a copy of the flow state.
func (f *Flow) State() *models.StepState {
	return f.state.Clone()
}

// CurrentStep returns the definition of the step the flow is on.
func (f *Flow) CurrentStep() models.StepDefinition {
	return f.def.Steps[f.state.CurrentIndex]
}

func (f *Flow) last() int {
	return f.state.TotalSteps - 1
}

func (f *Flow) touch() {
	f.state.UpdatedAt = f.clock.Now().UTC()
}

func (f *Flow) advance() Transition {
	from := f.state.CurrentIndex
	f.state.CurrentIndex++
	f.state.Visited = max(f.state.Visited, f.state.CurrentIndex)

	return Transition{Kind: TransitionAdvanced, From: from, To: f.state.CurrentIndex}
}

func (f *Flow) stay(kind TransitionKind) Transition {
	return Transition{Kind: kind, From: f.state.CurrentIndex, To: f.state.CurrentIndex}
}

func (f *Flow) ownsField(field models.Field) bool {
	for _, rule := range f.CurrentStep().Rules {
		if rule.Field == field {
			return true
		}
	}

	return false
}

// UpdateField overwrites a payload value and clears its error. Flows with a
// Derive hook may fill related fields and move on to the next step.
func (f *Flow) UpdateField(field models.Field, value string) (Transition, error) {
	if f.state.Pending {
		return Transition{}, &FlowError{Op: "UpdateField", FlowID: f.state.ID, Err: ErrSubmissionPending}
	}

	if f.state.Terminal == models.TerminalSuccess {
		return Transition{}, &FlowError{Op: "UpdateField", FlowID: f.state.ID, Err: ErrFlowFinished}
	}

	if !f.def.Accepts(field) {
		return Transition{}, &FlowError{
			Op:     "UpdateField",
			FlowID: f.state.ID,
			Err:    fmt.Errorf("%w: %s", ErrFieldNotAccepted, field),
		}
	}

	defer f.touch()

	f.state.Payload[field] = value
	delete(f.state.Errors, field)

	if f.def.Derive == nil {
		return f.stay(TransitionUpdated), nil
	}

	derived, advance := f.def.Derive(field, value)
	for k, v := range derived {
		f.state.Payload[k] = v
		delete(f.state.Errors, k)
	}

	if advance && f.ownsField(field) && f.state.CurrentIndex < f.last() {
		return f.advance(), nil
	}

	return f.stay(TransitionUpdated), nil
}

// GoNext validates the current step and moves forward. Validation failures
// populate the error map and return a blocked transition, not an error. Steps
// with an action return a Submission for the caller to run.
func (f *Flow) GoNext() (Transition, error) {
	if f.state.Pending {
		return Transition{}, &FlowError{Op: "GoNext", FlowID: f.state.ID, Err: ErrSubmissionPending}
	}

	if f.state.Terminal == models.TerminalSuccess {
		return f.stay(TransitionNoop), nil
	}

	defer f.touch()

	if f.state.Terminal == models.TerminalError {
		f.state.Terminal = models.TerminalInProgress
		f.state.TerminalError = ""
	}

	step := f.CurrentStep()

	errs := f.validator.Step(step.Rules, f.state.Payload)
	if len(errs) > 0 {
		f.state.Errors = errs

		return f.stay(TransitionBlocked), nil
	}

	f.state.Errors = make(map[models.Field]string)

	if step.Action != nil {
		f.state.Pending = true

		transition := f.stay(TransitionSubmit)
		transition.Submission = &Submission{
			FlowID:     f.state.ID,
			Generation: f.state.Generation,
			StepIndex:  f.state.CurrentIndex,
			Endpoint:   step.Action.Endpoint,
			Payload:    f.submissionPayload(step.Action),
		}

		return transition, nil
	}

	if f.state.CurrentIndex == f.last() {
		f.state.Terminal = models.TerminalSuccess

		return f.stay(TransitionCompleted), nil
	}

	return f.advance(), nil
}

func (f *Flow) submissionPayload(action *models.StepAction) map[string]any {
	payload := make(map[string]any, len(f.state.Payload)+len(action.Static))
	maps.Copy(payload, action.Static)

	for field, value := range f.state.Payload {
		omitted := false

		for _, o := range action.Omit {
			if o == field {
				omitted = true

				break
			}
		}

		if !omitted {
			payload[field.String()] = value
		}
	}

	return payload
}

// Settle applies the outcome of a submission. It reports false when the
// submission is stale because the flow was reset or closed meanwhile; the
// outcome is then dropped.
func (f *Flow) Settle(sub *Submission, result map[string]any, err error) (Transition, bool) {
	if sub == nil || !f.state.Pending || sub.Generation != f.state.Generation || sub.StepIndex != f.state.CurrentIndex {
		return Transition{}, false
	}

	defer f.touch()

	f.state.Pending = false

	if err != nil {
		message := submissionMessage(err)

		switch f.def.FailurePolicy {
		case models.FailureTerminal:
			f.state.Terminal = models.TerminalError
			f.state.TerminalError = message
		default:
			f.state.Errors[f.def.ErrorField] = message
		}

		return f.stay(TransitionFailed), true
	}

	f.state.Result = result

	if f.state.CurrentIndex == f.last() {
		f.state.Terminal = models.TerminalSuccess

		return f.stay(TransitionCompleted), true
	}

	return f.advance(), true
}

// GoBack moves to the previous step. No validation applies.
func (f *Flow) GoBack() (Transition, error) {
	if f.state.Pending {
		return Transition{}, &FlowError{Op: "GoBack", FlowID: f.state.ID, Err: ErrSubmissionPending}
	}

	if f.state.CurrentIndex == 0 || f.state.Terminal == models.TerminalSuccess {
		return f.stay(TransitionNoop), nil
	}

	defer f.touch()

	from := f.state.CurrentIndex
	f.state.CurrentIndex--

	return Transition{Kind: TransitionRetreated, From: from, To: f.state.CurrentIndex}, nil
}

// JumpTo selects a step directly. Only visited steps are reachable unless
// the flow allows free navigation.
func (f *Flow) JumpTo(index int) (Transition, error) {
	if f.state.Pending {
		return Transition{}, &FlowError{Op: "JumpTo", FlowID: f.state.ID, Err: ErrSubmissionPending}
	}

	if f.state.Terminal == models.TerminalSuccess {
		return Transition{}, &FlowError{Op: "JumpTo", FlowID: f.state.ID, Err: ErrFlowFinished}
	}

	if index < 0 || index >= f.state.TotalSteps {
		return Transition{}, &FlowError{
			Op:     "JumpTo",
			FlowID: f.state.ID,
			Err:    fmt.Errorf("%w: %d", ErrStepOutOfRange, index),
		}
	}

	if !f.def.FreeNavigation && index > f.state.Visited {
		return Transition{}, &FlowError{
			Op:     "JumpTo",
			FlowID: f.state.ID,
			Err:    fmt.Errorf("%w: %d", ErrStepNotVisited, index),
		}
	}

	defer f.touch()

	from := f.state.CurrentIndex
	f.state.CurrentIndex = index
	f.state.Visited = max(f.state.Visited, index)

	return Transition{Kind: TransitionJumped, From: from, To: index}, nil
}

// Reset returns the flow to its initial state. Any pending submission
// becomes stale.
func (f *Flow) Reset() Transition {
	defer f.touch()

	from := f.state.CurrentIndex

	f.state.CurrentIndex = 0
	f.state.Visited = 0
	f.state.Payload = make(map[models.Field]string)
	f.state.Errors = make(map[models.Field]string)
	f.state.Terminal = models.TerminalInProgress
	f.state.TerminalError = ""
	f.state.Result = nil
	f.state.Pending = false
	f.state.Generation++

	return Transition{Kind: TransitionReset, From: from, To: 0}
}
