package task

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Hooks receive dispatcher notifications. They are called from worker
// goroutines and must be safe for concurrent use.
type Hooks struct {
	OnProgress func(active int)
	OnError    func(err error)
	OnFinished func()
}

// RunFunc is one dispatched iteration.
type RunFunc func(ctx context.Context, worker int) error

// Dispatcher runs iterations concurrently and reports when all are done.
// The active counter belongs to the dispatcher, so each fetch session owns
// its own.
type Dispatcher struct {
	hooks  Hooks
	logger zerolog.Logger

	mu     sync.Mutex
	active int
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(hooks Hooks) *Dispatcher {
	return &Dispatcher{
		hooks:  hooks,
		logger: log.With().Str("component", "dispatcher").Logger(),
	}
}

// Mode returns ParallelMode.
func (d *Dispatcher) Mode() Mode { return ParallelMode }

// Active returns the number of running iterations.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Dispatch schedules n deferred starts of run. The whole batch is counted
// before any iteration starts, so OnFinished fires exactly once when the
// last one completes.
func (d *Dispatcher) Dispatch(ctx context.Context, n int, run RunFunc) {
	if n < 1 {
		n = 1
	}

	d.mu.Lock()
	d.active += n
	active := d.active
	d.mu.Unlock()

	d.wg.Add(n)
	d.progress(active)

	d.logger.Debug().Int("workers", n).Msg("Dispatching iterations")

	for i := 0; i < n; i++ {
		go func(worker int) {
			defer d.wg.Done()
			d.release(run(ctx, worker))
		}(i)
	}
}

// Wait blocks until every dispatched iteration has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// release frees the slot before surfacing the error so a failure can never
// leave the dispatcher looking busy.
func (d *Dispatcher) release(err error) {
	d.mu.Lock()
	d.active--
	active := d.active
	d.mu.Unlock()

	d.progress(active)

	if err != nil {
		d.logger.Debug().Err(err).Msg("Iteration failed")
		if d.hooks.OnError != nil {
			d.hooks.OnError(err)
		}
	}

	if active == 0 {
		d.logger.Debug().Msg("All iterations finished")
		if d.hooks.OnFinished != nil {
			d.hooks.OnFinished()
		}
	}
}

func (d *Dispatcher) progress(active int) {
	activeIterations.Set(float64(active))
	if d.hooks.OnProgress != nil {
		d.hooks.OnProgress(active)
	}
}
