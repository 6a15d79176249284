package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dcshock/runqueue/future"
)

// RetryPolicy configures Retry. The first retry waits Backoff; each later one
// waits Multiplier times longer, up to Cap. MaxAttempts counts every call of
// the wrapped handler, the first one included; zero or less retries until the
// context ends. If ShouldRetry is non-nil only errors it accepts are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Multiplier  float64 // values below 1 keep the delay fixed
	Cap         time.Duration
	ShouldRetry func(err error) bool
}

// Delay returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.Backoff)
	if p.Multiplier > 1 {
		for i := 0; i < attempt; i++ {
			d *= p.Multiplier
			if p.Cap > 0 && d >= float64(p.Cap) {
				return p.Cap
			}
		}
	}
	if p.Cap > 0 && time.Duration(d) > p.Cap {
		return p.Cap
	}
	return time.Duration(d)
}

// Retry wraps a success handler so that failed calls are repeated in place
// with backoff. An awaitable result is awaited inside the retry loop so its
// rejection is retried as well. When attempts run out the last error is
// returned wrapped with the attempt count.
func Retry(inner SuccessFunc, policy RetryPolicy) SuccessFunc {
	return func(ctx context.Context, p *Pipeline, value interface{}) (interface{}, error) {
		for attempt := 0; ; attempt++ {
			out, err := inner(ctx, p, value)
			if err == nil {
				if aw, ok := out.(future.Awaitable); ok {
					out, err = aw.Await(ctx)
				}
			}
			if err == nil {
				return out, nil
			}
			if policy.ShouldRetry != nil && !policy.ShouldRetry(err) {
				return nil, err
			}
			if policy.MaxAttempts > 0 && attempt+1 >= policy.MaxAttempts {
				return nil, fmt.Errorf("retry: giving up after %d attempts: %w", attempt+1, err)
			}
			t := time.NewTimer(policy.Delay(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, fmt.Errorf("retry: %w (last error: %v)", ctx.Err(), err)
			case <-t.C:
			}
		}
	}
}
