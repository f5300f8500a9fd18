package task

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgs is returned when starting a chain without steps.
	ErrInvalidArgs = errors.New("invalid args: chain has no steps")

	// ErrManualInterrupt is returned when a run is cancelled by its owner.
	ErrManualInterrupt = errors.New("manual interrupt")

	// ErrAlreadyStarted is returned when a loop is run twice.
	ErrAlreadyStarted = errors.New("loop already started")
)

// ChainInterrupt wraps a step failure with the step's 1-based position.
type ChainInterrupt struct {
	Err   error
	Index int
	Count int
}

// Error implements the error interface.
func (e *ChainInterrupt) Error() string {
	return fmt.Sprintf("%d/%d in chain: %v", e.Index, e.Count, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ChainInterrupt) Unwrap() error {
	return e.Err
}
