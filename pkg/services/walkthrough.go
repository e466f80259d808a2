package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/lexflow/pkg/flows"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/otelhelper"
	"github.com/dukex/lexflow/pkg/walkthrough"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type walkthroughEntry struct {
	driver    *walkthrough.Driver
	sessionID string
	touched   time.Time
}

// Walkthrough keeps the running demo walkthroughs of this process. Drivers
// tick in memory only; they are not persisted.
type Walkthrough struct {
	logger  *slog.Logger
	catalog *flows.Catalog
	config  walkthrough.Config
	tracer  trace.Tracer
	clock   clockwork.Clock
	onTick  walkthrough.TickFunc

	mu      sync.Mutex
	drivers map[string]*walkthroughEntry
}

func NewWalkthrough(catalog *flows.Catalog, config walkthrough.Config, opts ...Option) *Walkthrough {
	o := applyOptions("walkthrough_service", opts)

	return &Walkthrough{
		logger:  o.logger,
		catalog: catalog,
		config:  config,
		tracer:  o.tracer,
		clock:   o.clock,
		drivers: make(map[string]*walkthroughEntry),
	}
}

// OnTick registers an observer for every processed tick of every walkthrough.
// It must be set before the first Start.
func (s *Walkthrough) OnTick(fn walkthrough.TickFunc) {
	s.onTick = fn
}

// Start opens a walkthrough; it begins playing after the configured delay.
func (s *Walkthrough) Start(ctx context.Context, kind models.WalkthroughKind, sessionID string) (models.WalkthroughState, error) {
	_, span := otelhelper.StartSpan(ctx, s.tracer, "walkthrough.start",
		attribute.String(otelhelper.SessionIDKey, sessionID),
	)
	defer span.End()

	def, err := s.catalog.Walkthrough(kind)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.WalkthroughState{}, wrap("Start", string(kind), err)
	}

	id := uuid.NewString()
	driver := walkthrough.NewDriver(id, def, s.config, s.clock, s.onTick)

	s.mu.Lock()
	s.drivers[id] = &walkthroughEntry{driver: driver, sessionID: sessionID, touched: s.clock.Now()}
	s.mu.Unlock()

	// Drivers outlive the request that started them.
	driver.Start(context.Background())

	span.SetAttributes(attribute.String(otelhelper.WalkthroughIDKey, id))
	s.logger.InfoContext(ctx, "Walkthrough started", "walkthrough_id", id, "kind", kind, "session_id", sessionID)

	return driver.State(), nil
}

func (s *Walkthrough) driver(op, id string) (*walkthrough.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.drivers[id]
	if !ok {
		return nil, wrap(op, id, ErrWalkthroughNotFound)
	}

	entry.touched = s.clock.Now()

	return entry.driver, nil
}

func (s *Walkthrough) Get(_ context.Context, id string) (models.WalkthroughState, error) {
	driver, err := s.driver("Get", id)
	if err != nil {
		return models.WalkthroughState{}, err
	}

	return driver.State(), nil
}

// Play resumes playback; a finished walkthrough restarts from the first step.
func (s *Walkthrough) Play(_ context.Context, id string) (models.WalkthroughState, error) {
	driver, err := s.driver("Play", id)
	if err != nil {
		return models.WalkthroughState{}, err
	}

	return driver.Play(), nil
}

func (s *Walkthrough) Pause(_ context.Context, id string) (models.WalkthroughState, error) {
	driver, err := s.driver("Pause", id)
	if err != nil {
		return models.WalkthroughState{}, err
	}

	return driver.Pause(), nil
}

func (s *Walkthrough) Toggle(_ context.Context, id string) (models.WalkthroughState, error) {
	driver, err := s.driver("Toggle", id)
	if err != nil {
		return models.WalkthroughState{}, err
	}

	return driver.Toggle(), nil
}

// Select jumps to a step and restarts its progress.
func (s *Walkthrough) Select(_ context.Context, id string, index int) (models.WalkthroughState, error) {
	driver, err := s.driver("Select", id)
	if err != nil {
		return models.WalkthroughState{}, err
	}

	state, err := driver.Select(index)
	if err != nil {
		return models.WalkthroughState{}, wrap("Select", id, err)
	}

	return state, nil
}

// Stop halts the walkthrough's ticker and forgets it.
func (s *Walkthrough) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.drivers[id]
	delete(s.drivers, id)
	s.mu.Unlock()

	if !ok {
		return wrap("Stop", id, ErrWalkthroughNotFound)
	}

	entry.driver.Stop()
	s.logger.InfoContext(ctx, "Walkthrough stopped", "walkthrough_id", id)

	return nil
}

// StopSession stops every walkthrough started for the session.
func (s *Walkthrough) StopSession(ctx context.Context, sessionID string) int {
	s.mu.Lock()

	var stopped []*walkthrough.Driver

	for id, entry := range s.drivers {
		if entry.sessionID == sessionID {
			stopped = append(stopped, entry.driver)
			delete(s.drivers, id)
		}
	}
	s.mu.Unlock()

	for _, driver := range stopped {
		driver.Stop()
	}

	if len(stopped) > 0 {
		s.logger.InfoContext(ctx, "Walkthroughs stopped for session", "session_id", sessionID, "count", len(stopped))
	}

	return len(stopped)
}

// SweepIdle stops walkthroughs nobody has called since before and returns
// their ids. Playback ticks do not count as activity.
func (s *Walkthrough) SweepIdle(ctx context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()

	var (
		removed []string
		stopped []*walkthrough.Driver
	)

	for id, entry := range s.drivers {
		if entry.touched.Before(before) {
			removed = append(removed, id)
			stopped = append(stopped, entry.driver)
			delete(s.drivers, id)
		}
	}
	s.mu.Unlock()

	for _, driver := range stopped {
		driver.Stop()
	}

	if len(removed) > 0 {
		s.logger.InfoContext(ctx, "Idle walkthroughs stopped", "count", len(removed))
	}

	return removed, nil
}

// Shutdown stops every running walkthrough.
func (s *Walkthrough) Shutdown() {
	s.mu.Lock()
	entries := s.drivers
	s.drivers = make(map[string]*walkthroughEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.driver.Stop()
	}
}
