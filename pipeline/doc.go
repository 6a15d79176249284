// Package pipeline provides reusable chains of asynchronous steps and a
// bounded-concurrency scheduler that feeds a shared work collection through
// them.
//
// A Pipeline is an ordered list of steps. Each step has an optional success
// handler and an optional failure handler; a run folds the steps over a
// value/error pair the same way promise chains do. A success handler's value
// goes to the next step's success handler, an error goes to the next failure
// handler, and a failure handler that returns a nil error recovers the chain.
// A handler may return a future.Awaitable as its value; the run waits for it.
//
//	p := pipeline.New("double").
//		Then(func(ctx context.Context, _ *pipeline.Pipeline, v interface{}) (interface{}, error) {
//			return v.(int) * 2, nil
//		}, nil)
//	v, err := p.Run(ctx, 21).Await(ctx) // 42, nil
//
// # Observers
//
// Subscribe attaches an Observer that is told when each run starts and when it
// resolves or rejects. Observers that also implement StepObserver see every
// handler call with its input, output and duration. Hooks adapts plain
// functions.
//
// # Series
//
// RunSeries starts a fixed number of workers over a Collection. Each worker
// takes the front item, runs the pipeline on it and repeats. Steps may Append
// to the collection while the series runs; idle workers wake up for the new
// work. The first failing run aborts the series. An Infinite series keeps its
// workers waiting for more work until Finish, FinishWith or Abort is called,
// which makes it suitable as the engine of a submission queue (see package
// fifo).
//
// Workers loop in their own goroutines, so collections of any size are
// processed without growing the stack.
package pipeline
