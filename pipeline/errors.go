package pipeline

import (
	"errors"

	"github.com/dcshock/runqueue/future"
)

var (
	// ErrAborted is the rejection reason of a series aborted with a nil reason.
	ErrAborted = errors.New("series aborted")
	// ErrNotInfinite is returned by Finish and FinishWith on a finite series.
	ErrNotInfinite = errors.New("series is not infinite")
)

// PanicError is the failure produced when a step handler panics.
type PanicError = future.PanicError

// Retryable marks err as retryable. Use with RetryPolicy.ShouldRetry so only
// these errors trigger a retry (e.g. transient failures), not permanent ones.
type Retryable struct{ Err error }

func (e *Retryable) Error() string { return e.Err.Error() }
func (e *Retryable) Unwrap() error { return e.Err }
func RetryableErr(err error) error { return &Retryable{Err: err} }
func IsRetryable(err error) bool   { return errors.As(err, new(*Retryable)) }
