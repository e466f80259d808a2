// Package models defines the domain models shared by the flow sequencer, the
// walkthrough timer and the service layer.
package models

import (
	"maps"
	"time"
)

// FlowKind identifies one of the guided flows offered by the product.
type FlowKind string

const (
	FlowKindSignup     FlowKind = "signup"
	FlowKindContact    FlowKind = "contact"
	FlowKindOnboarding FlowKind = "onboarding"
	FlowKindDocument   FlowKind = "document"
)

// TerminalStatus is the outcome of a flow's terminal action.
type TerminalStatus string

const (
	TerminalInProgress TerminalStatus = "in_progress"
	TerminalSuccess    TerminalStatus = "success"
	TerminalError      TerminalStatus = "error"
)

// FailurePolicy decides how a failed submission is surfaced.
type FailurePolicy string

const (
	// FailureInline attaches the error to the flow's error field and keeps the flow in progress.
	FailureInline FailurePolicy = "inline"
	// FailureTerminal moves the flow to TerminalError; the next advance retries.
	FailureTerminal FailurePolicy = "terminal"
)

// Check is a validation rule kind.
type Check string

const (
	CheckRequired  Check = "required"
	CheckEmail     Check = "email"
	CheckMinLength Check = "min_length"
	CheckMatches   Check = "matches"
)

// Rule validates one field of a step before the flow may advance.
type Rule struct {
	Field   Field
	Check   Check
	Min     int    // CheckMinLength
	Other   Field  // CheckMatches
	Message string // overrides the default message
}

// StepAction is the network call performed when a step is completed.
type StepAction struct {
	Endpoint string
	// Static values merged into the submitted payload, e.g. {"action": "signup"}.
	Static map[string]any
	// Fields collected by the flow but never sent, e.g. the password confirmation.
	Omit []Field
}

// StepDefinition describes one step of a flow.
type StepDefinition struct {
	Name   string
	Rules  []Rule
	Action *StepAction
}

// DeriveFunc lets a flow react to a field update: it returns fields to set
// alongside the update and whether the flow should move to the next step.
type DeriveFunc func(field Field, value string) (derived map[Field]string, advance bool)

// FlowDefinition is the static description of a flow.
type FlowDefinition struct {
	Kind           FlowKind
	Steps          []StepDefinition
	Fields         []Field
	FreeNavigation bool
	FailurePolicy  FailurePolicy
	ErrorField     Field
	Derive         DeriveFunc
}

// Accepts reports whether the flow collects the given field.
func (d *FlowDefinition) Accepts(field Field) bool {
	for _, f := range d.Fields {
		if f == field {
			return true
		}
	}

	return false
}

// StepState is the full state of one flow instance.
type StepState struct {
	ID            string           `json:"id"`
	Kind          FlowKind         `json:"kind"`
	SessionID     string           `json:"session_id,omitempty"`
	CurrentIndex  int              `json:"current_index"`
	TotalSteps    int              `json:"total_steps"`
	Visited       int              `json:"visited"`
	Payload       map[Field]string `json:"payload"`
	Errors        map[Field]string `json:"errors"`
	Terminal      TerminalStatus   `json:"terminal"`
	TerminalError string           `json:"terminal_error,omitempty"`
	Pending       bool             `json:"pending"`
	Generation    uint64           `json:"generation"`
	Result        map[string]any   `json:"result,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of the state's maps.
func (s *StepState) Clone() *StepState {
	clone := *s
	clone.Payload = maps.Clone(s.Payload)
	clone.Errors = maps.Clone(s.Errors)
	clone.Result = maps.Clone(s.Result)

	if clone.Payload == nil {
		clone.Payload = make(map[Field]string)
	}

	if clone.Errors == nil {
		clone.Errors = make(map[Field]string)
	}

	return &clone
}
