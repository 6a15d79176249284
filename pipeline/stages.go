// Standard success handlers for common step patterns.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dcshock/runqueue/future"
)

// ConvertFunc converts value of type A to type B. Used by Transform and MapSlice.
type ConvertFunc[A, B any] func(ctx context.Context, a A) (B, error)

// Transform adapts a typed conversion to a SuccessFunc. Input that is not an
// A fails the step.
func Transform[A, B any](convert ConvertFunc[A, B]) SuccessFunc {
	return func(ctx context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		a, ok := input.(A)
		if !ok {
			var zero A
			return nil, fmt.Errorf("transform: expected %T, got %T", zero, input)
		}
		return convert(ctx, a)
	}
}

// Identity returns a handler that passes the input through unchanged.
func Identity() SuccessFunc {
	return func(_ context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		return input, nil
	}
}

// Tap calls fn with the input for its side effect and passes the input on.
func Tap(fn func(context.Context, interface{})) SuccessFunc {
	return func(ctx context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		fn(ctx, input)
		return input, nil
	}
}

// ValidationError is the failure produced by Validate.
type ValidationError struct {
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string { return e.Message }

// Validate returns a handler that passes input through only if predicate(v)
// is true. Otherwise it fails with a *ValidationError carrying errMsg
// ("validation failed" when empty). Input of another type is an error too.
func Validate[T any](predicate func(T) bool, errMsg string) SuccessFunc {
	if errMsg == "" {
		errMsg = "validation failed"
	}
	return func(_ context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		v, ok := input.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("validate: expected %T, got %T", zero, input)
		}
		if !predicate(v) {
			return nil, &ValidationError{Message: errMsg, Value: input}
		}
		return input, nil
	}
}

// Constant returns a handler that ignores input and always outputs value.
func Constant(value interface{}) SuccessFunc {
	return func(context.Context, *Pipeline, interface{}) (interface{}, error) {
		return value, nil
	}
}

// Delay returns a handler that yields its input after d. The run stays
// suspended on the returned future; cancelling ctx fails the step.
func Delay(d time.Duration) SuccessFunc {
	return func(ctx context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		return future.After(ctx, d, input), nil
	}
}

// Recover returns a failure handler that replaces any error with value.
func Recover(value interface{}) FailureFunc {
	return func(context.Context, *Pipeline, error) (interface{}, error) {
		return value, nil
	}
}

// WithTimeout wraps inner so it runs with a context deadline of now+timeout.
// An awaitable returned by inner is awaited under the same deadline.
func WithTimeout(inner SuccessFunc, timeout time.Duration) SuccessFunc {
	return func(ctx context.Context, p *Pipeline, input interface{}) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out, err := inner(ctx, p, input)
		if err != nil {
			return nil, err
		}
		if aw, ok := out.(future.Awaitable); ok {
			return aw.Await(ctx)
		}
		return out, nil
	}
}

// MapSlice returns a handler that converts []T to []U using convert for each element.
func MapSlice[T, U any](convert ConvertFunc[T, U]) SuccessFunc {
	return func(ctx context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		slice, ok := input.([]T)
		if !ok {
			var zero []T
			return nil, fmt.Errorf("mapslice: expected %T, got %T", zero, input)
		}
		out := make([]U, 0, len(slice))
		for i, v := range slice {
			u, err := convert(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("mapslice[%d]: %w", i, err)
			}
			out = append(out, u)
		}
		return out, nil
	}
}

// FilterSlice returns a handler that keeps only elements of []T for which keep(v) is true.
func FilterSlice[T any](keep func(T) bool) SuccessFunc {
	return func(_ context.Context, _ *Pipeline, input interface{}) (interface{}, error) {
		slice, ok := input.([]T)
		if !ok {
			var zero []T
			return nil, fmt.Errorf("filterslice: expected %T, got %T", zero, input)
		}
		out := make([]T, 0, len(slice))
		for _, v := range slice {
			if keep(v) {
				out = append(out, v)
			}
		}
		return out, nil
	}
}
