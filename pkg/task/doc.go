// Package task runs fixed, ordered lists of steps, optionally repeated, and
// dispatches repeated runs in parallel.
//
// A Chain passes each step's output to the next step. A Loop re-runs a chain
// until its owner stops or finishes it; the stop check happens only between
// iterations, so an in-flight iteration always completes. A Dispatcher runs
// up to N loops concurrently and reports when all of them are done.
//
//	chain := task.NewChain("fetch",
//		task.StepFunc(fetch),
//		task.StepFunc(decode),
//		task.StepFunc(render),
//	)
//	loop := task.NewLoop(chain, next, onError)
//	d := task.NewDispatcher(task.Hooks{OnFinished: done})
//	d.Dispatch(ctx, 4, func(ctx context.Context, _ int) error {
//		_, err := loop.Run(ctx, nil)
//		return err
//	})
//
// Chain, Loop and Dispatcher form a closed set of modes (ChainMode, LoopMode,
// ParallelMode). Chain and Loop both implement Step, so a loop can be a step
// of another chain.
package task
