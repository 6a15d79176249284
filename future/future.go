package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Awaitable is anything whose eventual outcome can be waited for. Pipeline
// steps may return an Awaitable as their value; the executor waits for it and
// continues with its settlement.
type Awaitable interface {
	Await(ctx context.Context) (interface{}, error)
}

// Future is the read side of a single asynchronous outcome. It settles exactly
// once, either with a value or with an error.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value interface{}, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

// Done returns a channel that is closed when the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx is done. When ctx finishes
// first, ctx.Err() is returned and the future keeps running.
func (f *Future) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result reports the outcome without blocking. It returns ErrPending while
// the future has not settled.
func (f *Future) Result() (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		return nil, ErrPending
	}
}

// Then returns a future for the outcome of applying onSuccess or onFailure to
// this future's settlement. A nil handler passes the outcome through, and a
// failure handler that returns a nil error recovers the chain.
func (f *Future) Then(onSuccess func(interface{}) (interface{}, error), onFailure func(error) (interface{}, error)) *Future {
	next := newFuture()
	go func() {
		<-f.done
		value, err := f.value, f.err
		func() {
			defer func() {
				if r := recover(); r != nil {
					value, err = nil, &PanicError{Value: r}
				}
			}()
			switch {
			case err == nil && onSuccess != nil:
				value, err = onSuccess(value)
			case err != nil && onFailure != nil:
				value, err = onFailure(err)
			}
		}()
		if aw, ok := value.(Awaitable); ok && err == nil {
			value, err = aw.Await(context.Background())
		}
		next.settle(value, err)
	}()
	return next
}

// Deferred is a Future together with the functions that settle it.
type Deferred struct {
	*Future
}

// Defer returns a pending Deferred.
func Defer() *Deferred {
	return &Deferred{Future: newFuture()}
}

// Resolve settles the future with value. It reports false if the future had
// already settled.
func (d *Deferred) Resolve(value interface{}) bool { return d.settle(value, nil) }

// Reject settles the future with err. A nil err is replaced by ErrNilRejection.
func (d *Deferred) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	return d.settle(nil, err)
}

// Settle resolves or rejects depending on err.
func (d *Deferred) Settle(value interface{}, err error) bool {
	if err != nil {
		return d.Reject(err)
	}
	return d.Resolve(value)
}

var (
	// ErrNilRejection replaces a nil error passed to Reject.
	ErrNilRejection = errors.New("future rejected without a reason")
	// ErrPending is returned by Result before the future settles.
	ErrPending = errors.New("future is still pending")
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Resolved returns a future already settled with value.
func Resolved(value interface{}) *Future {
	f := newFuture()
	f.settle(value, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	d := Defer()
	d.Reject(err)
	return d.Future
}

// Go runs fn in a new goroutine and returns a future for its result. A panic
// in fn rejects the future with a *PanicError.
func Go(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) *Future {
	d := Defer()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.Reject(&PanicError{Value: r})
			}
		}()
		d.Settle(fn(ctx))
	}()
	return d.Future
}
