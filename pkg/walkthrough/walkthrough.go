// Package walkthrough drives the timed demo walkthroughs: a ticking task
// that accumulates progress within the current step and advances on its
// own, with pause/resume and manual step selection.
package walkthrough

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/progress"
)

var ErrStepOutOfRange = errors.New("walkthrough step out of range")

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultDelta        = 2.0
	DefaultStartDelay   = time.Second

	fullStep = 100.0
)

type Config struct {
	TickInterval time.Duration
	// Delta is the progress added per tick while running.
	Delta float64
	// StartDelay elapses after Open before playback starts on its own.
	StartDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval: DefaultTickInterval,
		Delta:        DefaultDelta,
		StartDelay:   DefaultStartDelay,
	}
}

// Walkthrough is the timer state machine. It does not tick on its own; a
// Driver or a test calls Tick. It is not safe for concurrent use.
type Walkthrough struct {
	def    *models.WalkthroughDefinition
	config Config

	index      int
	progress   float64
	running    bool
	finished   bool
	delayTicks int
}

func New(def *models.WalkthroughDefinition, config Config) *Walkthrough {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}

	if config.Delta <= 0 {
		config.Delta = DefaultDelta
	}

	return &Walkthrough{def: def, config: config}
}

func (w *Walkthrough) steps() int {
	return len(w.def.Titles)
}

// Open resets the walkthrough and schedules playback after the start delay.
func (w *Walkthrough) Open() {
	w.Close()
	w.delayTicks = int(w.config.StartDelay / w.config.TickInterval)

	if w.delayTicks == 0 {
		w.running = true
	}
}

// Close stops playback and forgets all progress.
func (w *Walkthrough) Close() {
	w.index = 0
	w.progress = 0
	w.running = false
	w.finished = false
	w.delayTicks = 0
}

// Tick advances the timer by one interval.
func (w *Walkthrough) Tick() {
	if w.delayTicks > 0 {
		w.delayTicks--
		if w.delayTicks == 0 {
			w.running = true
		}

		return
	}

	if !w.running {
		return
	}

	w.progress += w.config.Delta
	if w.progress < fullStep {
		return
	}

	if w.index == w.steps()-1 {
		w.progress = fullStep
		w.running = false
		w.finished = true

		return
	}

	w.index++
	w.progress = 0
}

// Play resumes playback. A finished walkthrough starts over.
func (w *Walkthrough) Play() {
	w.delayTicks = 0

	if w.finished {
		w.index = 0
		w.progress = 0
		w.finished = false
	}

	w.running = true
}

// Pause freezes progress without resetting it. A pending auto-start is cancelled.
func (w *Walkthrough) Pause() {
	w.delayTicks = 0
	w.running = false
}

func (w *Walkthrough) Toggle() {
	if w.running {
		w.Pause()

		return
	}

	w.Play()
}

// Select jumps to a step and restarts its progress. Playback keeps its
// running or paused status.
func (w *Walkthrough) Select(index int) error {
	if index < 0 || index >= w.steps() {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, index)
	}

	w.index = index
	w.progress = 0
	w.finished = false

	return nil
}

// State returns a snapshot. The id is filled in by the owner.
func (w *Walkthrough) State() models.WalkthroughState {
	return models.WalkthroughState{
		Kind:         w.def.Kind,
		CurrentIndex: w.index,
		TotalSteps:   w.steps(),
		StepTitle:    w.def.Titles[w.index],
		Progress:     w.progress,
		Percent:      progress.Continuous(w.index, w.steps(), w.progress),
		Running:      w.running,
		Starting:     w.delayTicks > 0,
		Finished:     w.finished,
	}
}
