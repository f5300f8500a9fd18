package task

import (
	"context"
	"fmt"
	"sync"
)

// Status is the lifecycle state of a loop.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusFinished
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// NextFunc supplies the arguments of the next iteration. ok=false finishes
// the loop.
type NextFunc func(ctx context.Context) (args any, ok bool, err error)

// ErrorFunc decides what a failed iteration means. Returning nil absorbs the
// failure and the loop continues; any other error ends the loop.
type ErrorFunc func(args any, err error) error

// Loop re-runs a chain until stopped, finished or failed.
type Loop struct {
	chain   *Chain
	next    NextFunc
	onError ErrorFunc

	mu         sync.Mutex
	status     Status
	iterations int
}

// NewLoop creates a loop over chain. onError may be nil, in which case every
// failure is terminal.
func NewLoop(chain *Chain, next NextFunc, onError ErrorFunc) *Loop {
	return &Loop{chain: chain, next: next, onError: onError}
}

// Mode returns LoopMode.
func (l *Loop) Mode() Mode { return LoopMode }

// Status returns the current state.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Iterations returns the number of completed chain runs.
func (l *Loop) Iterations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.iterations
}

// Stop prevents the next iteration. Stopping a finished or stopped loop is a
// no-op.
func (l *Loop) Stop() { l.settle(StatusStopped) }

// Finish marks the loop done after the current iteration.
func (l *Loop) Finish() { l.settle(StatusFinished) }

func (l *Loop) settle(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == StatusIdle || l.status == StatusRunning {
		l.status = s
	}
}

// Run iterates until the loop is stopped, finished, runs out of arguments or
// hits a terminal error. It returns the number of iterations run.
func (l *Loop) Run(ctx context.Context, _ any) (any, error) {
	l.mu.Lock()
	switch l.status {
	case StatusIdle:
		l.status = StatusRunning
	case StatusRunning:
		l.mu.Unlock()
		return 0, ErrAlreadyStarted
	default:
		l.mu.Unlock()
		return 0, nil
	}
	l.mu.Unlock()

	count := 0
	for {
		if l.Status() != StatusRunning {
			return count, nil
		}
		if err := ctx.Err(); err != nil {
			l.Stop()
			return count, fmt.Errorf("%w: %w", ErrManualInterrupt, err)
		}

		args, ok, err := l.next(ctx)
		if err != nil {
			l.Stop()
			return count, err
		}
		if !ok {
			l.Finish()
			return count, nil
		}

		_, err = l.chain.Run(ctx, args)
		count++
		l.mu.Lock()
		l.iterations++
		l.mu.Unlock()
		loopIterationsTotal.WithLabelValues(l.chain.Name()).Inc()

		if err == nil {
			continue
		}
		if l.onError == nil {
			l.Stop()
			return count, err
		}
		if terminal := l.onError(args, err); terminal != nil {
			l.Stop()
			return count, terminal
		}
	}
}
