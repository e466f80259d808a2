package walkthrough

import (
	"context"
	"sync"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/jonboulle/clockwork"
)

// TickFunc observes the state after every processed tick.
type TickFunc func(state models.WalkthroughState)

// Driver owns a Walkthrough and the ticker feeding it.
type Driver struct {
	id     string
	clock  clockwork.Clock
	onTick TickFunc

	mu     sync.Mutex
	wt     *Walkthrough
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDriver(id string, def *models.WalkthroughDefinition, config Config, clock clockwork.Clock, onTick TickFunc) *Driver {
	return &Driver{
		id:     id,
		clock:  clock,
		onTick: onTick,
		wt:     New(def, config),
	}
}

func (d *Driver) ID() string {
	return d.id
}

// Start opens the walkthrough and starts ticking until Stop or ctx is done.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return
	}

	d.wt.Open()

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	ticker := d.clock.NewTicker(d.wt.config.TickInterval)

	go func() {
		defer close(d.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				d.tick()
			}
		}
	}()
}

func (d *Driver) tick() {
	d.mu.Lock()
	d.wt.Tick()
	state := d.stateLocked()
	d.mu.Unlock()

	if d.onTick != nil {
		d.onTick(state)
	}
}

// Stop tears the ticker down and resets the walkthrough, so a new Start
// begins at step 0.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.wt.Close()
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (d *Driver) Play() models.WalkthroughState {
	return d.apply(func(w *Walkthrough) { w.Play() })
}

func (d *Driver) Pause() models.WalkthroughState {
	return d.apply(func(w *Walkthrough) { w.Pause() })
}

func (d *Driver) Toggle() models.WalkthroughState {
	return d.apply(func(w *Walkthrough) { w.Toggle() })
}

func (d *Driver) Select(index int) (models.WalkthroughState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.wt.Select(index); err != nil {
		return models.WalkthroughState{}, err
	}

	return d.stateLocked(), nil
}

func (d *Driver) State() models.WalkthroughState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stateLocked()
}

func (d *Driver) apply(fn func(w *Walkthrough)) models.WalkthroughState {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(d.wt)

	return d.stateLocked()
}

func (d *Driver) stateLocked() models.WalkthroughState {
	state := d.wt.State()
	state.ID = d.id

	return state
}
