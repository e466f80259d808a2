// Package events defines the flow lifecycle events published on the event bus.
package events

import (
	"time"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every flow lifecycle event.
const Topic = "lexflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	FlowOpenedEvent      EventType = "flow.opened"
	FlowStepChangedEvent EventType = "flow.step_changed"
	FlowSubmittedEvent   EventType = "flow.submitted"
	FlowCompletedEvent   EventType = "flow.completed"
	FlowFailedEvent      EventType = "flow.failed"
	FlowClosedEvent      EventType = "flow.closed"
)

// BaseEvent carries the fields shared by every flow event.
type BaseEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	FlowID    string          `json:"flow_id"`
	FlowKind  models.FlowKind `json:"flow_kind"`
	SessionID string          `json:"session_id,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// GetBase exposes the shared fields to handlers that receive any flow event.
func (b BaseEvent) GetBase() BaseEvent {
	return b
}

// FlowEvent is implemented by every event in this package.
type FlowEvent interface {
	GetType() EventType
	GetBase() BaseEvent
}

type FlowOpened struct {
	BaseEvent

	TotalSteps int `json:"total_steps"`
}

func (e FlowOpened) GetType() EventType {
	return FlowOpenedEvent
}

// FlowStepChanged is emitted whenever the current step index moves.
type FlowStepChanged struct {
	BaseEvent

	From       int    `json:"from"`
	To         int    `json:"to"`
	Transition string `json:"transition"`
}

func (e FlowStepChanged) GetType() EventType {
	return FlowStepChangedEvent
}

type FlowSubmitted struct {
	BaseEvent

	StepIndex  int    `json:"step_index"`
	Endpoint   string `json:"endpoint"`
	Generation uint64 `json:"generation"`
}

func (e FlowSubmitted) GetType() EventType {
	return FlowSubmittedEvent
}

type FlowCompleted struct {
	BaseEvent

	Result map[string]any `json:"result,omitempty"`
}

func (e FlowCompleted) GetType() EventType {
	return FlowCompletedEvent
}

type FlowFailed struct {
	BaseEvent

	StepIndex int                  `json:"step_index"`
	Error     string               `json:"error"`
	Policy    models.FailurePolicy `json:"policy"`
}

func (e FlowFailed) GetType() EventType {
	return FlowFailedEvent
}

// Close reasons.
const (
	CloseReasonUser = "closed"
	CloseReasonIdle = "idle"
)

type FlowClosed struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e FlowClosed) GetType() EventType {
	return FlowClosedEvent
}

// NewBaseEvent stamps a new event for the given flow.
func NewBaseEvent(eventType EventType, state *models.StepState, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at.UTC(),
		FlowID:    state.ID,
		FlowKind:  state.Kind,
		SessionID: state.SessionID,
		Metadata:  make(map[string]any),
	}
}
