// Package future provides a settle-once outcome handle used by the pipeline
// and scheduler packages.
//
// A Future is read-only; a Deferred owns the Resolve and Reject functions.
// Futures are safe for concurrent use: any number of goroutines may Await the
// same future, and only the first settlement counts.
//
//	d := future.Defer()
//	go func() { d.Settle(compute()) }()
//	v, err := d.Await(ctx)
//
// Helpers cover the usual shapes of asynchronous code: Go runs a function in
// a goroutine, After resolves after a delay, FromCallback adapts callback APIs,
// All joins several awaitables and Spawn drives an explicit state machine that
// suspends on awaitables between states.
package future
