package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/lexflow/pkg/events"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	t.Parallel()

	state := &models.StepState{ID: "flow-1", Kind: models.FlowKindContact, SessionID: "s-1"}
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	base := events.NewBaseEvent(events.FlowOpenedEvent, state, at)

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, events.FlowOpenedEvent, base.Type)
	assert.Equal(t, "flow-1", base.FlowID)
	assert.Equal(t, models.FlowKindContact, base.FlowKind)
	assert.Equal(t, "s-1", base.SessionID)
	assert.Equal(t, time.UTC, base.Timestamp.Location())
	assert.True(t, base.Timestamp.Equal(at))
}

func TestFlowEvents_ImplementFlowEvent(t *testing.T) {
	t.Parallel()

	state := &models.StepState{ID: "flow-1", Kind: models.FlowKindSignup}
	now := time.Now()

	cases := map[events.EventType]events.FlowEvent{
		events.FlowOpenedEvent:      events.FlowOpened{BaseEvent: events.NewBaseEvent(events.FlowOpenedEvent, state, now)},
		events.FlowStepChangedEvent: events.FlowStepChanged{BaseEvent: events.NewBaseEvent(events.FlowStepChangedEvent, state, now)},
		events.FlowSubmittedEvent:   events.FlowSubmitted{BaseEvent: events.NewBaseEvent(events.FlowSubmittedEvent, state, now)},
		events.FlowCompletedEvent:   events.FlowCompleted{BaseEvent: events.NewBaseEvent(events.FlowCompletedEvent, state, now)},
		events.FlowFailedEvent:      events.FlowFailed{BaseEvent: events.NewBaseEvent(events.FlowFailedEvent, state, now)},
		events.FlowClosedEvent:      events.FlowClosed{BaseEvent: events.NewBaseEvent(events.FlowClosedEvent, state, now)},
	}

	for eventType, event := range cases {
		assert.Equal(t, eventType, event.GetType())
		assert.Equal(t, eventType, event.GetBase().Type)
		assert.Equal(t, "flow-1", event.GetBase().FlowID)
	}
}

func TestFlowFailed_JSON(t *testing.T) {
	t.Parallel()

	event := events.FlowFailed{
		BaseEvent: events.NewBaseEvent(events.FlowFailedEvent, &models.StepState{ID: "flow-1", Kind: models.FlowKindDocument}, time.Now()),
		StepIndex: 1,
		Error:     "Something went wrong. Please try again.",
		Policy:    models.FailureTerminal,
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "flow-1", decoded["flow_id"])
	assert.Equal(t, "document", decoded["flow_kind"])
	assert.Equal(t, "terminal", decoded["policy"])
	assert.InDelta(t, 1, decoded["step_index"], 0)
}
