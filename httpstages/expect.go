package httpstages

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/dcshock/runqueue/pipeline"
)

// ErrExpectation is wrapped by every failure of the Expect family.
var ErrExpectation = errors.New("expectation failed")

// Expect fails the run when check returns an error; otherwise the input
// passes through.
func Expect(check func(interface{}) error) pipeline.SuccessFunc {
	if check == nil {
		panic("httpstages.Expect: nil check")
	}
	return func(_ context.Context, _ *pipeline.Pipeline, input interface{}) (interface{}, error) {
		if err := check(input); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExpectation, err)
		}
		return input, nil
	}
}

// ExpectEqual compares the input with want using reflect.DeepEqual. Decoded
// JSON numbers are float64.
func ExpectEqual(want interface{}) pipeline.SuccessFunc {
	return Expect(func(got interface{}) error {
		if reflect.DeepEqual(got, want) {
			return nil
		}
		return fmt.Errorf("got %v, want %v", got, want)
	})
}

// ExpectKey requires a decoded JSON object holding every one of keys.
func ExpectKey(keys ...string) pipeline.SuccessFunc {
	return Expect(func(v interface{}) error {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return fmt.Errorf("want JSON object, got %T", v)
		}
		for _, k := range keys {
			if _, ok := obj[k]; !ok {
				return fmt.Errorf("missing key %q", k)
			}
		}
		return nil
	})
}
