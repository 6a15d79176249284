package future

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// After returns a future that resolves to value once d has elapsed, or rejects
// with ctx.Err() if ctx finishes first.
func After(ctx context.Context, d time.Duration, value interface{}) *Future {
	def := Defer()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			def.Resolve(value)
		case <-ctx.Done():
			def.Reject(ctx.Err())
		}
	}()
	return def.Future
}

// Callback is the completion function handed to FromCallback.
type Callback func(value interface{}, err error)

// FromCallback adapts callback-style code to a future. fn receives a Callback
// and must call it once; later calls are ignored.
//
//	f := future.FromCallback(func(done future.Callback) {
//	    client.GetAsync(url, func(body []byte, err error) { done(body, err) })
//	})
func FromCallback(fn func(done Callback)) *Future {
	d := Defer()
	fn(func(value interface{}, err error) {
		d.Settle(value, err)
	})
	return d.Future
}

// All waits for every awaitable and returns their values in argument order.
// The first failure is returned once all of them have settled.
func All(ctx context.Context, items ...Awaitable) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			v, err := item.Await(ctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
