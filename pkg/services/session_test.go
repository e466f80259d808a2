package services_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/lexflow/pkg/appstate"
	"github.com/dukex/lexflow/pkg/backend"
	"github.com/dukex/lexflow/pkg/flows"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/persistence/file"
	"github.com/dukex/lexflow/pkg/services"
	"github.com/dukex/lexflow/pkg/validation"
	"github.com/dukex/lexflow/pkg/walkthrough"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckout struct {
	plan, period string
	url          string
	err          error
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, plan, period string) (string, error) {
	f.plan, f.period = plan, period

	return f.url, f.err
}

// flakySessions fails every Save while failSave is set.
type flakySessions struct {
	persistence.SessionRepository
	failSave atomic.Bool
}

func (r *flakySessions) Save(ctx context.Context, session *models.Session) error {
	if r.failSave.Load() {
		return errors.New("disk full")
	}

	return r.SessionRepository.Save(ctx, session)
}

type sessionFixture struct {
	sessions     *services.Session
	repo         *flakySessions
	store        *file.Persistence
	flows        *services.Flow
	walkthroughs *services.Walkthrough
	checkout     *fakeCheckout
	clock        *clockwork.FakeClock
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	}))
	t.Cleanup(server.Close)

	clock := clockwork.NewFakeClock()
	store := file.NewPersistence(t.TempDir())
	catalog := flows.NewCatalog()

	flowService := services.NewFlow(
		catalog,
		validation.New(validation.NewValidate()),
		store.FlowRepository(),
		backend.NewClient(server.URL, slog.Default()),
		nil,
		services.WithClock(clock),
	)
	walkthroughs := services.NewWalkthrough(catalog, walkthrough.DefaultConfig(), services.WithClock(clock))
	checkout := &fakeCheckout{url: "https://checkout.example.com/session/1"}
	repo := &flakySessions{SessionRepository: store.SessionRepository()}

	t.Cleanup(walkthroughs.Shutdown)

	return &sessionFixture{
		sessions:     services.NewSession(repo, flowService, walkthroughs, checkout, services.WithClock(clock)),
		repo:         repo,
		store:        store,
		flows:        flowService,
		walkthroughs: walkthroughs,
		checkout:     checkout,
		clock:        clock,
	}
}

func TestSession_Create(t *testing.T) {
	fx := newSessionFixture(t)

	session, err := fx.sessions.Create(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, appstate.PeriodMonthly, session.State.Period)
	assert.Empty(t, session.State.OpenModals)
	assert.False(t, session.State.TestimonialsPaused)

	loaded, err := fx.sessions.Get(t.Context(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
}

func TestSession_FlowModalLifecycle(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	session, err = fx.sessions.OpenModal(ctx, session.ID, "signup")
	require.NoError(t, err)
	assert.True(t, session.State.IsOpen(appstate.ModalSignup))

	flowID, ok := session.State.Attachment(appstate.ModalSignup)
	require.True(t, ok)

	_, err = fx.flows.UpdateField(ctx, flowID, "name", "Ada")
	require.NoError(t, err)
	_, err = fx.flows.UpdateField(ctx, flowID, "email", "ada@example.com")
	require.NoError(t, err)

	view, err := fx.flows.Next(ctx, flowID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentIndex)
	assert.Equal(t, session.ID, view.SessionID)

	again, err := fx.sessions.OpenModal(ctx, session.ID, "signup")
	require.NoError(t, err)

	sameID, _ := again.State.Attachment(appstate.ModalSignup)
	assert.Equal(t, flowID, sameID)

	session, err = fx.sessions.CloseModal(ctx, session.ID, "signup")
	require.NoError(t, err)
	assert.False(t, session.State.IsOpen(appstate.ModalSignup))

	_, err = fx.flows.Get(ctx, flowID)
	assert.True(t, services.IsNotFound(err))

	session, err = fx.sessions.OpenModal(ctx, session.ID, "signup")
	require.NoError(t, err)

	reopenedID, _ := session.State.Attachment(appstate.ModalSignup)
	assert.NotEqual(t, flowID, reopenedID)

	view, err = fx.flows.Get(ctx, reopenedID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.CurrentIndex)
	assert.Empty(t, view.Payload)
}

func TestSession_WalkthroughModal(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	session, err = fx.sessions.OpenModal(ctx, session.ID, "demo")
	require.NoError(t, err)

	id, ok := session.State.Attachment(appstate.ModalDemo)
	require.True(t, ok)

	state, err := fx.walkthroughs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.WalkthroughDemo, state.Kind)
	assert.Equal(t, 7, state.TotalSteps)

	_, err = fx.sessions.CloseModal(ctx, session.ID, "demo")
	require.NoError(t, err)

	_, err = fx.walkthroughs.Get(ctx, id)
	assert.True(t, services.IsNotFound(err))
}

func TestSession_LoginModalHasNoAttachment(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	session, err = fx.sessions.OpenModal(ctx, session.ID, "login")
	require.NoError(t, err)
	assert.True(t, session.State.IsOpen(appstate.ModalLogin))

	_, ok := session.State.Attachment(appstate.ModalLogin)
	assert.False(t, ok)

	session, err = fx.sessions.CloseModal(ctx, session.ID, "login")
	require.NoError(t, err)
	assert.Empty(t, session.State.OpenModals)
}

func TestSession_InvalidInput(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	_, err = fx.sessions.OpenModal(ctx, session.ID, "pricing")
	assert.True(t, services.IsValidationError(err))

	_, err = fx.sessions.SelectPeriod(ctx, session.ID, appstate.PricingPeriod("weekly"))
	assert.True(t, services.IsValidationError(err))

	_, err = fx.sessions.ToggleTestimonials(ctx, "missing")
	assert.True(t, services.IsNotFound(err))
}

func TestSession_PeriodTestimonialsAndCheckout(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	session, err = fx.sessions.SelectPeriod(ctx, session.ID, appstate.PeriodAnnual)
	require.NoError(t, err)
	assert.Equal(t, appstate.PeriodAnnual, session.State.Period)

	session, err = fx.sessions.ToggleTestimonials(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, session.State.TestimonialsPaused)

	url, err := fx.sessions.Checkout(ctx, session.ID, "professional")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/session/1", url)
	assert.Equal(t, "professional", fx.checkout.plan)
	assert.Equal(t, "annual", fx.checkout.period)

	_, err = fx.sessions.Checkout(ctx, session.ID, "")
	assert.True(t, services.IsValidationError(err))

	fx.checkout.err = &backend.HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "Stripe unavailable"}

	_, err = fx.sessions.Checkout(ctx, session.ID, "starter")
	assert.True(t, services.IsUpstreamError(err))

	fx.checkout.err = errors.Join(backend.ErrMissingCheckoutURL)

	_, err = fx.sessions.Checkout(ctx, session.ID, "starter")
	assert.True(t, services.IsUpstreamError(err))
}

func TestSession_SweepIdleStopsWalkthroughs(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	session, err = fx.sessions.OpenModal(ctx, session.ID, "guide")
	require.NoError(t, err)

	guideID, _ := session.State.Attachment(appstate.ModalGuide)

	fx.clock.Advance(3 * time.Hour)

	removed, err := fx.sessions.SweepIdle(ctx, fx.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{session.ID}, removed)

	_, err = fx.walkthroughs.Get(ctx, guideID)
	assert.True(t, services.IsNotFound(err))
}

func TestSession_OpenModalDiscardsAttachmentWhenSaveFails(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	fx.repo.failSave.Store(true)

	for _, modal := range []string{"contact", "demo"} {
		_, err = fx.sessions.OpenModal(ctx, session.ID, modal)
		require.Error(t, err, modal)
	}

	later := fx.clock.Now().Add(time.Hour)

	flowIDs, err := fx.store.FlowRepository().IdleIDs(ctx, later)
	require.NoError(t, err)
	assert.Empty(t, flowIDs)

	running, err := fx.walkthroughs.SweepIdle(ctx, later)
	require.NoError(t, err)
	assert.Empty(t, running)

	fx.repo.failSave.Store(false)

	session, err = fx.sessions.OpenModal(ctx, session.ID, "contact")
	require.NoError(t, err)

	flowID, ok := session.State.Attachment(appstate.ModalContact)
	require.True(t, ok)

	flowIDs, err = fx.store.FlowRepository().IdleIDs(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, []string{flowID}, flowIDs)
}

func TestSession_SweepIdleKeepsSessionTouchedAfterListing(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := t.Context()

	session, err := fx.sessions.Create(ctx)
	require.NoError(t, err)

	before := fx.clock.Now().Add(time.Minute)
	fx.clock.Advance(2 * time.Minute)

	ids, err := fx.store.SessionRepository().IdleIDs(ctx, before)
	require.NoError(t, err)
	require.Equal(t, []string{session.ID}, ids)

	_, err = fx.sessions.ToggleTestimonials(ctx, session.ID)
	require.NoError(t, err)

	removed, err := fx.sessions.SweepIdle(ctx, before)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = fx.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
}
