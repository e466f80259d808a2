package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// Sweeper discards records that have been idle since before.
type Sweeper interface {
	SweepIdle(ctx context.Context, before time.Time) ([]string, error)
}

// Janitor periodically sweeps idle sessions and flows.
type Janitor struct {
	logger   *slog.Logger
	clock    clockwork.Clock
	schedule string
	idle     time.Duration
	sweepers []Sweeper
	cron     *cron.Cron
}

// NewJanitor validates schedule (standard five-field cron or a @every descriptor).
func NewJanitor(schedule string, idle time.Duration, sweepers []Sweeper, opts ...Option) (*Janitor, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w: invalid janitor schedule %q: %w", ErrInvalidRequest, schedule, err)
	}

	if idle <= 0 {
		return nil, fmt.Errorf("%w: idle timeout must be positive", ErrInvalidRequest)
	}

	o := applyOptions("janitor", opts)

	return &Janitor{
		logger:   o.logger,
		clock:    o.clock,
		schedule: schedule,
		idle:     idle,
		sweepers: sweepers,
	}, nil
}

// Start schedules the sweep. Runs never overlap.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "Idle sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}

	j.cron.Start()
	j.logger.InfoContext(ctx, "Janitor started", "schedule", j.schedule, "idle_timeout", j.idle)

	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// RunOnce sweeps every store once and returns how many records were removed.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	before := j.clock.Now().Add(-j.idle)

	var (
		removed int
		errs    []error
	)

	for _, sweeper := range j.sweepers {
		ids, err := sweeper.SweepIdle(ctx, before)
		removed += len(ids)

		if err != nil {
			errs = append(errs, err)
		}
	}

	if removed > 0 {
		j.logger.InfoContext(ctx, "Idle records swept", "count", removed, "before", before)
	}

	return removed, errors.Join(errs...)
}
