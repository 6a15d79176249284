package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcshock/runqueue/future"
)

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{Backoff: 10 * time.Millisecond, Multiplier: 2, Cap: 50 * time.Millisecond}
	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		if got := policy.Delay(i); got != w*time.Millisecond {
			t.Errorf("Delay(%d): got %v, want %v", i, got, w*time.Millisecond)
		}
	}

	fixed := RetryPolicy{Backoff: 5 * time.Millisecond}
	if fixed.Delay(3) != 5*time.Millisecond {
		t.Errorf("fixed policy should not grow: %v", fixed.Delay(3))
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	ctx := context.Background()
	calls := 0
	inner := func(context.Context, *Pipeline, interface{}) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, RetryableErr(errors.New("flaky"))
		}
		return "ok", nil
	}
	step := Retry(inner, RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond, ShouldRetry: IsRetryable})
	out, err := step(ctx, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" || calls != 3 {
		t.Errorf("got %v after %d calls", out, calls)
	}
}

func TestRetry_NonRetryablePropagates(t *testing.T) {
	ctx := context.Background()
	permanent := errors.New("permanent")
	calls := 0
	step := Retry(func(context.Context, *Pipeline, interface{}) (interface{}, error) {
		calls++
		return nil, permanent
	}, RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond, ShouldRetry: IsRetryable})
	_, err := step(ctx, nil, nil)
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error retried %d times", calls-1)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	ctx := context.Background()
	flaky := errors.New("flaky")
	calls := 0
	step := Retry(func(context.Context, *Pipeline, interface{}) (interface{}, error) {
		calls++
		return future.Rejected(flaky), nil
	}, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	_, err := step(ctx, nil, nil)
	if !errors.Is(err, flaky) {
		t.Fatalf("expected wrapped flaky error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_ContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	step := Retry(func(context.Context, *Pipeline, interface{}) (interface{}, error) {
		return nil, errors.New("always")
	}, RetryPolicy{Backoff: 5 * time.Millisecond})
	_, err := step(ctx, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	base := errors.New("base")
	if IsRetryable(base) {
		t.Error("plain error reported retryable")
	}
	wrapped := RetryableErr(base)
	if !IsRetryable(wrapped) || !errors.Is(wrapped, base) {
		t.Errorf("RetryableErr should be retryable and unwrap to base: %v", wrapped)
	}
}
