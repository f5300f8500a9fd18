package task

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode identifies the orchestration variant.
type Mode int

const (
	ChainMode Mode = iota
	LoopMode
	ParallelMode
)

func (m Mode) String() string {
	switch m {
	case ChainMode:
		return "chain"
	case LoopMode:
		return "loop"
	case ParallelMode:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Step is one unit of work in a chain.
type Step interface {
	Run(ctx context.Context, in any) (any, error)
}

// StepFunc adapts a function to Step.
type StepFunc func(ctx context.Context, in any) (any, error)

// Run calls f.
func (f StepFunc) Run(ctx context.Context, in any) (any, error) {
	return f(ctx, in)
}

// Result is the outcome of an asynchronous chain run.
type Result struct {
	Output any
	Err    error
}

// Chain executes its steps in order, feeding each output to the next step.
type Chain struct {
	name   string
	steps  []Step
	logger zerolog.Logger
}

// NewChain creates a chain. The step list is fixed for the chain's lifetime.
func NewChain(name string, steps ...Step) *Chain {
	return &Chain{
		name:   name,
		steps:  append([]Step(nil), steps...),
		logger: log.With().Str("component", "task").Str("chain", name).Logger(),
	}
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Len returns the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Mode returns ChainMode.
func (c *Chain) Mode() Mode { return ChainMode }

// Run executes the steps synchronously. The context is checked between
// steps; a failing step is reported as a *ChainInterrupt.
func (c *Chain) Run(ctx context.Context, args any) (any, error) {
	n := len(c.steps)
	if n == 0 {
		return nil, ErrInvalidArgs
	}

	out := args
	for i, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return nil, &ChainInterrupt{
				Err:   fmt.Errorf("%w: %w", ErrManualInterrupt, err),
				Index: i + 1,
				Count: n,
			}
		}

		res, err := step.Run(ctx, out)
		if err != nil {
			chainStepErrorsTotal.WithLabelValues(c.name).Inc()
			c.logger.Debug().
				Err(err).
				Int("step", i+1).
				Int("steps", n).
				Msg("Chain step failed")
			return nil, &ChainInterrupt{Err: err, Index: i + 1, Count: n}
		}
		out = res
	}

	return out, nil
}

// Start runs the chain in its own goroutine and delivers the result on the
// returned channel.
func (c *Chain) Start(ctx context.Context, args any) (<-chan Result, error) {
	if len(c.steps) == 0 {
		return nil, ErrInvalidArgs
	}

	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		out, err := c.Run(ctx, args)
		ch <- Result{Output: out, Err: err}
	}()
	return ch, nil
}
