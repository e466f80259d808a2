package services_test

import (
	"testing"
	"time"

	"github.com/dukex/lexflow/pkg/flows"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/services"
	"github.com/dukex/lexflow/pkg/walkthrough"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalkthroughService(t *testing.T) (*services.Walkthrough, *clockwork.FakeClock, chan models.WalkthroughState) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	ticks := make(chan models.WalkthroughState, 1)

	service := services.NewWalkthrough(flows.NewCatalog(), walkthrough.DefaultConfig(), services.WithClock(clock))
	service.OnTick(func(state models.WalkthroughState) { ticks <- state })

	t.Cleanup(service.Shutdown)

	return service, clock, ticks
}

func advance(t *testing.T, clock *clockwork.FakeClock, ticks chan models.WalkthroughState, n int) models.WalkthroughState {
	t.Helper()

	var state models.WalkthroughState

	for range n {
		clock.Advance(walkthrough.DefaultTickInterval)

		select {
		case state = <-ticks:
		case <-time.After(5 * time.Second):
			t.Fatal("tick not processed")
		}
	}

	return state
}

func TestWalkthrough_AutoStartAndControls(t *testing.T) {
	service, clock, ticks := newWalkthroughService(t)
	ctx := t.Context()

	state, err := service.Start(ctx, models.WalkthroughDemo, "session-1")
	require.NoError(t, err)
	assert.True(t, state.Starting)
	assert.False(t, state.Running)
	assert.Equal(t, "AI Document Generation", state.StepTitle)

	state = advance(t, clock, ticks, 10)
	assert.True(t, state.Running)
	assert.False(t, state.Starting)

	state = advance(t, clock, ticks, 5)
	assert.InDelta(t, 10, state.Progress, 0.001)

	state, err = service.Pause(ctx, state.ID)
	require.NoError(t, err)
	assert.False(t, state.Running)

	frozen := advance(t, clock, ticks, 3)
	assert.InDelta(t, 10, frozen.Progress, 0.001)

	state, err = service.Toggle(ctx, state.ID)
	require.NoError(t, err)
	assert.True(t, state.Running)

	state, err = service.Select(ctx, state.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, state.CurrentIndex)
	assert.Equal(t, "Compliance Checks", state.StepTitle)
	assert.Zero(t, state.Progress)
	assert.True(t, state.Running)

	_, err = service.Select(ctx, state.ID, 7)
	assert.True(t, services.IsValidationError(err))
}

func TestWalkthrough_PlayFinishedRestarts(t *testing.T) {
	service, clock, ticks := newWalkthroughService(t)
	ctx := t.Context()

	state, err := service.Start(ctx, models.WalkthroughGuide, "")
	require.NoError(t, err)

	_, err = service.Select(ctx, state.ID, 3)
	require.NoError(t, err)

	_, err = service.Play(ctx, state.ID)
	require.NoError(t, err)

	state = advance(t, clock, ticks, 50)
	assert.True(t, state.Finished)
	assert.Equal(t, 100.0, state.Percent)

	state, err = service.Play(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.False(t, state.Finished)
	assert.True(t, state.Running)
}

func TestWalkthrough_StopAndStopSession(t *testing.T) {
	service, _, _ := newWalkthroughService(t)
	ctx := t.Context()

	_, err := service.Start(ctx, models.WalkthroughKind("tour"), "")
	assert.True(t, services.IsValidationError(err))

	first, err := service.Start(ctx, models.WalkthroughDemo, "session-1")
	require.NoError(t, err)
	second, err := service.Start(ctx, models.WalkthroughGuide, "session-1")
	require.NoError(t, err)
	other, err := service.Start(ctx, models.WalkthroughDemo, "session-2")
	require.NoError(t, err)

	require.NoError(t, service.Stop(ctx, first.ID))
	assert.True(t, services.IsNotFound(service.Stop(ctx, first.ID)))

	assert.Equal(t, 1, service.StopSession(ctx, "session-1"))

	_, err = service.Get(ctx, second.ID)
	assert.True(t, services.IsNotFound(err))

	_, err = service.Get(ctx, other.ID)
	require.NoError(t, err)
}
