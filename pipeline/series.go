package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dcshock/runqueue/future"
	"golang.org/x/sync/errgroup"
)

// SeriesOption configures RunSeries.
type SeriesOption func(*seriesConfig)

type seriesConfig struct {
	parallel int
	collect  *bool
	infinite bool
	logger   *slog.Logger
}

// WithParallel sets the number of workers. Values below 1 mean 1.
func WithParallel(n int) SeriesOption {
	return func(c *seriesConfig) { c.parallel = n }
}

// WithCollect controls whether successful results are gathered into the
// aggregate's value. It defaults to true for finite series and false for
// infinite ones.
func WithCollect(collect bool) SeriesOption {
	return func(c *seriesConfig) { c.collect = &collect }
}

// Infinite keeps workers parked on an empty collection instead of finishing.
// The series then ends only through Finish, FinishWith, Abort or context
// cancellation.
func Infinite() SeriesOption {
	return func(c *seriesConfig) { c.infinite = true }
}

// WithLogger sets the logger used for scheduler debug records.
func WithLogger(l *slog.Logger) SeriesOption {
	return func(c *seriesConfig) { c.logger = l }
}

// Series is one RunSeries call. The embedded future settles once every worker
// has exited: rejected with the abort reason, or resolved with the finish
// value, the collected results ([]interface{} in removal order) or nil.
type Series struct {
	*future.Future

	d   *future.Deferred
	p   *Pipeline
	c   *Collection
	log *slog.Logger

	mu        sync.Mutex
	active    int
	abort     error
	infinite  bool
	collect   bool
	seq       int
	slots     []resultSlot
	finish    interface{}
	hasFinish bool
	wake      chan struct{}
}

// resultSlot holds the outcome of the item removed at that position.
type resultSlot struct {
	value interface{}
	done  bool
}

// RunSeries starts workers that take items from the front of c one at a time
// and push each through a fresh run of p. At most the configured number of
// items are in flight at once. The first failing run aborts the series; items
// already in flight finish but their results are discarded. A finite series
// ends when c is empty and no worker is busy.
//
// Cancelling ctx aborts the series with ctx.Err(); runs in flight receive the
// same ctx.
func (p *Pipeline) RunSeries(ctx context.Context, c *Collection, opts ...SeriesOption) *Series {
	if c == nil {
		c = NewCollection()
	}
	cfg := seriesConfig{parallel: 1}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.parallel < 1 {
		cfg.parallel = 1
	}
	collect := !cfg.infinite
	if cfg.collect != nil {
		collect = *cfg.collect
	}
	log := cfg.logger
	if log == nil {
		log = slog.Default()
	}
	d := future.Defer()
	s := &Series{
		Future:   d.Future,
		d:        d,
		p:        p,
		c:        c,
		log:      log.With("pipeline", p.Name),
		infinite: cfg.infinite,
		collect:  collect,
		wake:     make(chan struct{}),
	}

	s.log.Debug("series starting", "parallel", cfg.parallel, "infinite", cfg.infinite, "queued", c.Len())
	var g errgroup.Group
	for i := 0; i < cfg.parallel; i++ {
		worker := i
		g.Go(func() error {
			s.work(ctx, worker)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		s.settle()
	}()
	return s
}

// Abort stops the series. Workers take no further items; runs in flight
// finish and the aggregate rejects with reason (ErrAborted when nil). Only the
// first abort takes effect.
func (s *Series) Abort(reason error) {
	if reason == nil {
		reason = ErrAborted
	}
	s.mu.Lock()
	s.latch(reason)
	s.mu.Unlock()
}

// Finish ends an infinite series once the collection is drained and workers
// are idle. The aggregate resolves with the collected results when collecting,
// nil otherwise.
func (s *Series) Finish() error {
	return s.finishWith(nil, false)
}

// FinishWith is like Finish but the aggregate resolves with value.
func (s *Series) FinishWith(value interface{}) error {
	return s.finishWith(value, true)
}

func (s *Series) finishWith(value interface{}, has bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.infinite {
		return ErrNotInfinite
	}
	s.infinite = false
	s.finish, s.hasFinish = value, has
	s.log.Debug("series finishing", "active", s.active)
	s.broadcast()
	return nil
}

// work is one worker's loop. s.mu is held at the top of every iteration.
func (s *Series) work(ctx context.Context, id int) {
	s.mu.Lock()
	for {
		if s.abort != nil {
			s.mu.Unlock()
			return
		}
		if err := ctx.Err(); err != nil {
			s.latch(err)
			s.mu.Unlock()
			return
		}
		item, ok, changed := s.c.popOrWatch()
		if !ok {
			if s.active == 0 && !s.infinite {
				s.broadcast()
				s.mu.Unlock()
				return
			}
			wake := s.wake
			s.mu.Unlock()
			s.log.Debug("worker parked", "worker", id)
			select {
			case <-changed:
			case <-wake:
			case <-ctx.Done():
			}
			s.mu.Lock()
			continue
		}
		slot := s.seq
		s.seq++
		if s.collect {
			s.slots = append(s.slots, resultSlot{})
		}
		s.active++
		s.broadcast()
		s.mu.Unlock()

		out, err := s.p.Do(ctx, item)

		s.mu.Lock()
		s.active--
		if err != nil {
			s.latch(err)
			s.mu.Unlock()
			return
		}
		if s.collect && s.abort == nil {
			s.slots[slot] = resultSlot{value: out, done: true}
		}
	}
}

// latch records the first abort reason and wakes parked workers. Requires s.mu.
func (s *Series) latch(reason error) {
	if s.abort != nil {
		return
	}
	s.abort = reason
	s.log.Debug("series aborted", "reason", reason)
	s.broadcast()
}

// broadcast wakes every parked worker. Requires s.mu.
func (s *Series) broadcast() {
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *Series) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.abort != nil:
		s.d.Reject(s.abort)
	case s.hasFinish:
		s.d.Resolve(s.finish)
	case s.collect:
		s.d.Resolve(s.results())
	default:
		s.d.Resolve(nil)
	}
	s.log.Debug("series settled", "aborted", s.abort != nil)
}

// results compacts the filled slots in removal order. Requires s.mu.
func (s *Series) results() []interface{} {
	out := make([]interface{}, 0, len(s.slots))
	for _, r := range s.slots {
		if r.done {
			out = append(out, r.value)
		}
	}
	return out
}
