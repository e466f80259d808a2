package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/lexflow/pkg/channels/gochannel"
	"github.com/dukex/lexflow/pkg/eventbus"
	"github.com/dukex/lexflow/pkg/events"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	bus := newBus(t)

	received := make(chan *events.FlowSubmitted, 1)

	require.NoError(t, bus.Handle(events.FlowSubmittedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.FlowSubmitted)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	state := &models.StepState{ID: "flow-1", Kind: models.FlowKindSignup}
	err := bus.Publish(ctx, "flow-1", events.FlowSubmitted{
		BaseEvent:  events.NewBaseEvent(events.FlowSubmittedEvent, state, time.Now()),
		StepIndex:  2,
		Endpoint:   "/api/auth",
		Generation: 1,
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "flow-1", event.FlowID)
		assert.Equal(t, 2, event.StepIndex)
		assert.Equal(t, "/api/auth", event.Endpoint)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_SkipsUnhandledTypes(t *testing.T) {
	bus := newBus(t)

	received := make(chan events.EventType, 2)

	require.NoError(t, bus.Handle(events.FlowClosedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.FlowClosed).GetType()

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	state := &models.StepState{ID: "flow-2", Kind: models.FlowKindContact}
	require.NoError(t, bus.Publish(ctx, "flow-2", events.FlowOpened{BaseEvent: events.NewBaseEvent(events.FlowOpenedEvent, state, time.Now())}))
	require.NoError(t, bus.Publish(ctx, "flow-2", events.FlowClosed{BaseEvent: events.NewBaseEvent(events.FlowClosedEvent, state, time.Now()), Reason: events.CloseReasonUser}))

	select {
	case eventType := <-received:
		assert.Equal(t, events.FlowClosedEvent, eventType)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}

	assert.Empty(t, received)
}

func TestWatermillEventBus_HandlerErrorRedelivers(t *testing.T) {
	bus := newBus(t)

	attempts := make(chan struct{}, 4)

	require.NoError(t, bus.Handle(events.FlowCompletedEvent, func(_ context.Context, _ any) error {
		attempts <- struct{}{}
		if len(attempts) < 2 {
			return errors.New("audit store down")
		}

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	state := &models.StepState{ID: "flow-3", Kind: models.FlowKindDocument}
	require.NoError(t, bus.Publish(ctx, "flow-3", events.FlowCompleted{BaseEvent: events.NewBaseEvent(events.FlowCompletedEvent, state, time.Now())}))

	assert.Eventually(t, func() bool { return len(attempts) >= 2 }, 5*time.Second, 10*time.Millisecond)
}
