package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/lexflow/pkg/appstate"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/otelhelper"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutClient creates subscription checkouts.
type CheckoutClient interface {
	CreateCheckout(ctx context.Context, plan, period string) (string, error)
}

// modalFlows maps modals backed by a flow to the flow they open.
var modalFlows = map[appstate.Modal]models.FlowKind{
	appstate.ModalSignup:     models.FlowKindSignup,
	appstate.ModalContact:    models.FlowKindContact,
	appstate.ModalOnboarding: models.FlowKindOnboarding,
	appstate.ModalDocument:   models.FlowKindDocument,
}

var modalWalkthroughs = map[appstate.Modal]models.WalkthroughKind{
	appstate.ModalDemo:  models.WalkthroughDemo,
	appstate.ModalGuide: models.WalkthroughGuide,
}

// Session applies the UI store actions of one browser session and keeps the
// flows and walkthroughs behind its modals in step with it.
type Session struct {
	logger       *slog.Logger
	repo         persistence.SessionRepository
	flows        *Flow
	walkthroughs *Walkthrough
	checkout     CheckoutClient
	tracer       trace.Tracer
	clock        clockwork.Clock
	locks        *keyedMutex
}

func NewSession(
	repo persistence.SessionRepository,
	flows *Flow,
	walkthroughs *Walkthrough,
	checkout CheckoutClient,
	opts ...Option,
) *Session {
	o := applyOptions("session_service", opts)

	return &Session{
		logger:       o.logger,
		repo:         repo,
		flows:        flows,
		walkthroughs: walkthroughs,
		checkout:     checkout,
		tracer:       o.tracer,
		clock:        o.clock,
		locks:        newKeyedMutex(),
	}
}

func (s *Session) Create(ctx context.Context) (*models.Session, error) {
	now := s.clock.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		State:     appstate.Initial(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, wrap("Create", session.ID, err)
	}

	return session, nil
}

func (s *Session) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, wrap("Get", id, err)
	}

	return session, nil
}

func (s *Session) update(ctx context.Context, op, id string, fn func(ctx context.Context, state appstate.State) (appstate.State, error)) (*models.Session, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "session."+op, attribute.String(otelhelper.SessionIDKey, id))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.repo.ByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap(op, id, err)
	}

	next, err := fn(ctx, session.State)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap(op, id, err)
	}

	session.State = next
	session.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Save(ctx, session); err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap(op, id, err)
	}

	return session, nil
}

func (s *Session) SelectPeriod(ctx context.Context, id string, period appstate.PricingPeriod) (*models.Session, error) {
	return s.update(ctx, "SelectPeriod", id, func(_ context.Context, state appstate.State) (appstate.State, error) {
		return appstate.SelectPeriod(state, period)
	})
}

// OpenModal shows a modal. Flow modals open a fresh flow and demo modals
// start a walkthrough; the new id is attached to the modal. Opening a modal
// that is already open changes nothing.
func (s *Session) OpenModal(ctx context.Context, id string, name string) (*models.Session, error) {
	modal, err := appstate.ParseModal(name)
	if err != nil {
		return nil, wrap("OpenModal", id, err)
	}

	var rollback func(ctx context.Context) error

	session, err := s.update(ctx, "OpenModal", id, func(ctx context.Context, state appstate.State) (appstate.State, error) {
		if state.IsOpen(modal) {
			return state, nil
		}

		next, err := appstate.OpenModal(state, modal)
		if err != nil {
			return state, err
		}

		if kind, ok := modalFlows[modal]; ok && s.flows != nil {
			view, err := s.flows.Open(ctx, kind, id)
			if err != nil {
				return state, err
			}

			rollback = func(ctx context.Context) error { return s.flows.Close(ctx, view.ID) }

			return appstate.AttachFlow(next, modal, view.ID), nil
		}

		if kind, ok := modalWalkthroughs[modal]; ok && s.walkthroughs != nil {
			wt, err := s.walkthroughs.Start(ctx, kind, id)
			if err != nil {
				return state, err
			}

			rollback = func(ctx context.Context) error { return s.walkthroughs.Stop(ctx, wt.ID) }

			return appstate.AttachFlow(next, modal, wt.ID), nil
		}

		return next, nil
	})
	if err != nil && rollback != nil {
		// The session never recorded the new flow or walkthrough.
		if rerr := rollback(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.ErrorContext(ctx, "Failed to discard unattached modal", "session_id", id, "modal", modal, "error", rerr)
		}
	}

	return session, err
}

// CloseModal hides a modal and closes the flow or walkthrough behind it, so
// reopening starts over.
func (s *Session) CloseModal(ctx context.Context, id string, name string) (*models.Session, error) {
	modal, err := appstate.ParseModal(name)
	if err != nil {
		return nil, wrap("CloseModal", id, err)
	}

	return s.update(ctx, "CloseModal", id, func(ctx context.Context, state appstate.State) (appstate.State, error) {
		next, attached := appstate.CloseModal(state, modal)
		if attached == "" {
			return next, nil
		}

		if _, ok := modalFlows[modal]; ok && s.flows != nil {
			if err := s.flows.Close(ctx, attached); err != nil && !errors.Is(err, ErrFlowNotFound) {
				return state, err
			}
		}

		if _, ok := modalWalkthroughs[modal]; ok && s.walkthroughs != nil {
			if err := s.walkthroughs.Stop(ctx, attached); err != nil && !errors.Is(err, ErrWalkthroughNotFound) {
				return state, err
			}
		}

		return next, nil
	})
}

func (s *Session) ToggleTestimonials(ctx context.Context, id string) (*models.Session, error) {
	return s.update(ctx, "ToggleTestimonials", id, func(_ context.Context, state appstate.State) (appstate.State, error) {
		return appstate.ToggleTestimonials(state), nil
	})
}

// Checkout starts a subscription checkout for plan at the session's selected period.
func (s *Session) Checkout(ctx context.Context, id, plan string) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "session.Checkout", attribute.String(otelhelper.SessionIDKey, id))
	defer span.End()

	if plan == "" {
		return "", wrap("Checkout", id, ErrInvalidRequest)
	}

	if s.checkout == nil {
		return "", wrap("Checkout", id, ErrCheckoutUnavailable)
	}

	session, err := s.repo.ByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", wrap("Checkout", id, err)
	}

	url, err := s.checkout.CreateCheckout(ctx, plan, string(session.State.Period))
	if err != nil {
		otelhelper.SetError(span, err)
		s.logger.WarnContext(ctx, "Checkout failed", "session_id", id, "plan", plan, "error", err)

		return "", wrap("Checkout", id, err)
	}

	return url, nil
}

// SweepIdle discards sessions untouched since before together with their
// walkthroughs. Each session is checked again under its lock.
func (s *Session) SweepIdle(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := s.repo.IdleIDs(ctx, before)
	if err != nil {
		return nil, wrap("SweepIdle", "", err)
	}

	var (
		removed []string
		errs    []error
	)

	for _, id := range ids {
		ok, err := s.sweep(ctx, id, before)
		if err != nil {
			errs = append(errs, wrap("SweepIdle", id, err))

			continue
		}

		if ok {
			removed = append(removed, id)
		}
	}

	return removed, errors.Join(errs...)
}

func (s *Session) sweep(ctx context.Context, id string, before time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.repo.ByID(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if !session.UpdatedAt.Before(before) {
		return false, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return false, err
	}

	if s.walkthroughs != nil {
		s.walkthroughs.StopSession(ctx, id)
	}

	return true, nil
}
