package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/lexflow/pkg/backend"
	"github.com/dukex/lexflow/pkg/eventbus"
	"github.com/dukex/lexflow/pkg/events"
	"github.com/dukex/lexflow/pkg/flows"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/otelhelper"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/progress"
	"github.com/dukex/lexflow/pkg/sequencer"
	"github.com/dukex/lexflow/pkg/validation"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Submitter runs a terminal action against the backend.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, payload map[string]any) *backend.Task
}

// FlowView is the client-facing rendition of a flow.
type FlowView struct {
	*models.StepState

	Step     string   `json:"step"`
	Steps    []string `json:"steps"`
	Progress int      `json:"progress"`
}

func newFlowView(def *models.FlowDefinition, state *models.StepState) *FlowView {
	steps := make([]string, len(def.Steps))
	for i, step := range def.Steps {
		steps[i] = step.Name
	}

	return &FlowView{
		StepState: state,
		Step:      steps[state.CurrentIndex],
		Steps:     steps,
		Progress:  progress.Discrete(state.CurrentIndex, state.TotalSteps),
	}
}

type inflight struct {
	task    *backend.Task
	sub     *sequencer.Submission
	settled chan struct{}
}

// Flow runs flows: it loads a snapshot, applies one navigator call under the
// flow's lock, stores the result and publishes what happened.
type Flow struct {
	logger    *slog.Logger
	catalog   *flows.Catalog
	validator *validation.Validator
	repo      persistence.FlowRepository
	submitter Submitter
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	clock     clockwork.Clock
	locks     *keyedMutex

	mu       sync.Mutex
	inflight map[string]*inflight
	wg       sync.WaitGroup
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	clock  clockwork.Clock
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func applyOptions(module string, opts []Option) options {
	o := options{
		logger: slog.Default(),
		tracer: otelhelper.NoopTracer(),
		clock:  clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	o.logger = o.logger.With("module", module)

	return o
}

func NewFlow(
	catalog *flows.Catalog,
	validator *validation.Validator,
	repo persistence.FlowRepository,
	submitter Submitter,
	publisher eventbus.EventPublisher,
	opts ...Option,
) *Flow {
	o := applyOptions("flow_service", opts)

	return &Flow{
		logger:    o.logger,
		catalog:   catalog,
		validator: validator,
		repo:      repo,
		submitter: submitter,
		publisher: publisher,
		tracer:    o.tracer,
		clock:     o.clock,
		locks:     newKeyedMutex(),
		inflight:  make(map[string]*inflight),
	}
}

// Open starts a new flow of the given kind.
func (s *Flow) Open(ctx context.Context, kind models.FlowKind, sessionID string) (*FlowView, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow.open",
		attribute.String(otelhelper.FlowKindKey, string(kind)),
		attribute.String(otelhelper.SessionIDKey, sessionID),
	)
	defer span.End()

	def, err := s.catalog.Flow(kind)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap("Open", string(kind), err)
	}

	flow := sequencer.New(uuid.NewString(), def, s.validator, s.clock)
	state := flow.State()
	state.SessionID = sessionID

	span.SetAttributes(attribute.String(otelhelper.FlowIDKey, state.ID))

	if err := s.repo.Save(ctx, state); err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap("Open", state.ID, err)
	}

	s.publish(ctx, events.FlowOpened{
		BaseEvent:  events.NewBaseEvent(events.FlowOpenedEvent, state, s.clock.Now()),
		TotalSteps: state.TotalSteps,
	})

	s.logger.InfoContext(ctx, "Flow opened", "flow_id", state.ID, "kind", kind, "session_id", sessionID)

	return newFlowView(def, state), nil
}

// Get returns the current view of a flow.
func (s *Flow) Get(ctx context.Context, id string) (*FlowView, error) {
	flow, err := s.load(ctx, "Get", id)
	if err != nil {
		return nil, err
	}

	if flow.State().Pending && !s.isInflight(id) {
		view, _, err := s.mutate(ctx, "Get", id, func(f *sequencer.Flow) (sequencer.Transition, error) {
			return sequencer.Transition{Kind: sequencer.TransitionNoop, From: f.State().CurrentIndex, To: f.State().CurrentIndex}, nil
		})

		return view, err
	}

	return newFlowView(flow.Definition(), flow.State()), nil
}

// UpdateField sets one payload field by its backend key.
func (s *Flow) UpdateField(ctx context.Context, id, key, value string) (*FlowView, error) {
	field, err := models.ParseField(key)
	if err != nil {
		return nil, wrap("UpdateField", id, err)
	}

	view, _, err := s.mutate(ctx, "UpdateField", id, func(f *sequencer.Flow) (sequencer.Transition, error) {
		return f.UpdateField(field, value)
	})

	return view, err
}

// Next validates the current step and moves forward. When the step carries
// an action, the submission runs in the background and Next waits until it
// settles or ctx is done; in the latter case the returned view is still pending.
func (s *Flow) Next(ctx context.Context, id string) (*FlowView, error) {
	view, running, err := s.mutate(ctx, "Next", id, func(f *sequencer.Flow) (sequencer.Transition, error) {
		return f.GoNext()
	})
	if err != nil || running == nil {
		return view, err
	}

	select {
	case <-running.settled:
		return s.Get(ctx, id)
	case <-ctx.Done():
		return view, nil
	}
}

func (s *Flow) Back(ctx context.Context, id string) (*FlowView, error) {
	view, _, err := s.mutate(ctx, "Back", id, func(f *sequencer.Flow) (sequencer.Transition, error) {
		return f.GoBack()
	})

	return view, err
}

func (s *Flow) Jump(ctx context.Context, id string, index int) (*FlowView, error) {
	view, _, err := s.mutate(ctx, "Jump", id, func(f *sequencer.Flow) (sequencer.Transition, error) {
		return f.JumpTo(index)
	})

	return view, err
}

// Reset clears the flow and cancels any in-flight submission.
func (s *Flow) Reset(ctx context.Context, id string) (*FlowView, error) {
	view, _, err := s.mutate(ctx, "Reset", id, func(f *sequencer.Flow) (sequencer.Transition, error) {
		s.cancelInflight(id)

		return f.Reset(), nil
	})

	return view, err
}

// Close discards a flow, cancelling any in-flight submission.
func (s *Flow) Close(ctx context.Context, id string) error {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow.close", attribute.String(otelhelper.FlowIDKey, id))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.repo.ByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return wrap("Close", id, err)
	}

	s.cancelInflight(id)

	if err := s.repo.Delete(ctx, id); err != nil {
		otelhelper.SetError(span, err)

		return wrap("Close", id, err)
	}

	s.publish(ctx, events.FlowClosed{
		BaseEvent: events.NewBaseEvent(events.FlowClosedEvent, state, s.clock.Now()),
		Reason:    events.CloseReasonUser,
	})

	s.logger.InfoContext(ctx, "Flow closed", "flow_id", id)

	return nil
}

// SweepIdle discards flows untouched since before and returns their ids.
// Each flow is checked again under its lock, so one touched after the
// listing survives.
func (s *Flow) SweepIdle(ctx context.Context, before time.Time) ([]string, error) {
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

func (s *Flow) sweep(ctx context.Context, id string, before time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.repo.ByID(ctx, id)
	if errors.Is(err, ErrFlowNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if !state.UpdatedAt.Before(before) {
		return false, nil
	}

	s.cancelInflight(id)

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrFlowNotFound) {
		return false, err
	}

	s.publish(ctx, events.FlowClosed{
		BaseEvent: events.NewBaseEvent(events.FlowClosedEvent, state, s.clock.Now()),
		Reason:    events.CloseReasonIdle,
	})

	return true, nil
}

// Shutdown cancels in-flight submissions and waits for their goroutines.
func (s *Flow) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, running := range s.inflight {
		running.task.Cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Flow) load(ctx context.Context, op, id string) (*sequencer.Flow, error) {
	state, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, wrap(op, id, err)
	}

	def, err := s.catalog.Flow(state.Kind)
	if err != nil {
		return nil, wrap(op, id, err)
	}

	flow, err := sequencer.Restore(def, state, s.validator, s.clock)
	if err != nil {
		return nil, wrap(op, id, err)
	}

	return flow, nil
}

func (s *Flow) mutate(
	ctx context.Context,
	op, id string,
	fn func(f *sequencer.Flow) (sequencer.Transition, error),
) (*FlowView, *inflight, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow."+op, attribute.String(otelhelper.FlowIDKey, id))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	flow, err := s.load(ctx, op, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, nil, err
	}

	if err := s.recoverLost(ctx, flow); err != nil {
		otelhelper.SetError(span, err)

		return nil, nil, wrap(op, id, err)
	}

	transition, err := fn(flow)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, nil, wrap(op, id, err)
	}

	if transition.Submission != nil {
		if err := flows.ValidatePayload(flow.Definition(), transition.Submission.StepIndex, transition.Submission.Payload); err != nil {
			s.logger.ErrorContext(ctx, "Refusing to submit payload", "flow_id", id, "error", err)

			transition, _ = flow.Settle(transition.Submission, nil, err)
		}
	}

	span.SetAttributes(
		attribute.String(otelhelper.TransitionKey, string(transition.Kind)),
		attribute.Int(otelhelper.StepIndexKey, transition.To),
	)

	state := flow.State()

	if transition.Kind != sequencer.TransitionNoop {
		if err := s.repo.Save(ctx, state); err != nil {
			otelhelper.SetError(span, err)

			return nil, nil, wrap(op, id, err)
		}
	}

	s.publishTransition(ctx, flow.Definition(), state, transition)

	var running *inflight
	if transition.Submission != nil {
		running = s.startSubmission(ctx, transition.Submission)
	}

	return newFlowView(flow.Definition(), state), running, nil
}

func (s *Flow) startSubmission(ctx context.Context, sub *sequencer.Submission) *inflight {
	running := &inflight{
		task:    s.submitter.Submit(ctx, sub.Endpoint, sub.Payload),
		sub:     sub,
		settled: make(chan struct{}),
	}

	s.mu.Lock()
	s.inflight[sub.FlowID] = running
	s.mu.Unlock()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		result, err := running.task.Wait(context.Background())
		s.settle(context.WithoutCancel(ctx), running, result, err)
	}()

	return running
}

func (s *Flow) settle(ctx context.Context, running *inflight, result map[string]any, submitErr error) {
	defer close(running.settled)
	defer s.forget(running)

	id := running.sub.FlowID

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow.Settle",
		attribute.String(otelhelper.FlowIDKey, id),
		attribute.String(otelhelper.EndpointKey, running.sub.Endpoint),
	)
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	flow, err := s.load(ctx, "Settle", id)
	if err != nil {
		s.logger.DebugContext(ctx, "Dropping submission result of closed flow", "flow_id", id, "error", err)

		return
	}

	transition, applied := flow.Settle(running.sub, result, submitErr)
	if !applied {
		s.logger.DebugContext(ctx, "Dropping stale submission result", "flow_id", id, "generation", running.sub.Generation)

		return
	}

	if submitErr != nil {
		otelhelper.SetError(span, submitErr)
		s.logger.WarnContext(ctx, "Submission failed", "flow_id", id, "endpoint", running.sub.Endpoint, "error", submitErr)
	}

	state := flow.State()

	if err := s.repo.Save(ctx, state); err != nil {
		otelhelper.SetError(span, err)
		s.logger.ErrorContext(ctx, "Failed to store settled flow", "flow_id", id, "error", err)

		return
	}

	s.publishTransition(ctx, flow.Definition(), state, transition)
}

// recoverLost fails a pending submission that has no task in this process,
// such as one left behind by a restart. Callers hold the flow's lock.
func (s *Flow) recoverLost(ctx context.Context, flow *sequencer.Flow) error {
	state := flow.State()
	if !state.Pending || s.isInflight(state.ID) {
		return nil
	}

	sub := &sequencer.Submission{FlowID: state.ID, Generation: state.Generation, StepIndex: state.CurrentIndex}

	transition, applied := flow.Settle(sub, nil, ErrSubmissionLost)
	if !applied {
		return nil
	}

	s.logger.WarnContext(ctx, "Recovered lost submission", "flow_id", state.ID, "step", state.CurrentIndex)

	state = flow.State()

	if err := s.repo.Save(ctx, state); err != nil {
		return err
	}

	s.publishTransition(ctx, flow.Definition(), state, transition)

	return nil
}

func (s *Flow) isInflight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.inflight[id]

	return ok
}

func (s *Flow) cancelInflight(id string) {
	s.mu.Lock()
	running, ok := s.inflight[id]
	s.mu.Unlock()

	if ok {
		running.task.Cancel()
	}
}

func (s *Flow) forget(running *inflight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[running.sub.FlowID] == running {
		delete(s.inflight, running.sub.FlowID)
	}
}

func (s *Flow) publishTransition(ctx context.Context, def *models.FlowDefinition, state *models.StepState, transition sequencer.Transition) {
	now := s.clock.Now()

	if transition.From != transition.To {
		s.publish(ctx, events.FlowStepChanged{
			BaseEvent:  events.NewBaseEvent(events.FlowStepChangedEvent, state, now),
			From:       transition.From,
			To:         transition.To,
			Transition: string(transition.Kind),
		})
	}

	switch transition.Kind {
	case sequencer.TransitionSubmit:
		s.publish(ctx, events.FlowSubmitted{
			BaseEvent:  events.NewBaseEvent(events.FlowSubmittedEvent, state, now),
			StepIndex:  transition.Submission.StepIndex,
			Endpoint:   transition.Submission.Endpoint,
			Generation: transition.Submission.Generation,
		})
	case sequencer.TransitionCompleted:
		s.publish(ctx, events.FlowCompleted{
			BaseEvent: events.NewBaseEvent(events.FlowCompletedEvent, state, now),
			Result:    state.Result,
		})
	case sequencer.TransitionFailed:
		message := state.TerminalError
		if def.FailurePolicy != models.FailureTerminal {
			message = state.Errors[def.ErrorField]
		}

		s.publish(ctx, events.FlowFailed{
			BaseEvent: events.NewBaseEvent(events.FlowFailedEvent, state, now),
			StepIndex: state.CurrentIndex,
			Error:     message,
			Policy:    def.FailurePolicy,
		})
	}
}

// publish never fails the caller; lifecycle events are best effort.
func (s *Flow) publish(ctx context.Context, event events.FlowEvent) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event.GetBase().FlowID, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "flow_id", event.GetBase().FlowID, "error", err)
	}
}
