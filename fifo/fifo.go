// Package fifo provides a first-in first-out submission queue backed by an
// infinite pipeline series.
package fifo

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dcshock/runqueue/future"
	"github.com/dcshock/runqueue/pipeline"
)

// ErrClosed rejects submissions made after Close.
var ErrClosed = errors.New("fifo: queue closed")

// Task is a unit of work submitted to a Queue.
type Task func(ctx context.Context) (interface{}, error)

// Option configures New.
type Option func(*options)

type options struct {
	parallel int
	observer pipeline.Observer
	logger   *slog.Logger
}

// WithParallel sets how many tasks may run at once. The default of 1 runs
// tasks strictly in submission order.
func WithParallel(n int) Option {
	return func(o *options) { o.parallel = n }
}

// WithObserver subscribes obs to the queue's backing pipeline. Each task
// execution is one run.
func WithObserver(obs pipeline.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger for queue and scheduler debug records.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Queue runs submitted tasks in submission order with bounded concurrency.
type Queue struct {
	c      *pipeline.Collection
	series *pipeline.Series
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
}

type submission struct {
	task interface{}
	d    *future.Deferred
}

// New starts a queue. The queue stops when ctx ends; tasks still waiting at
// that point are rejected with ctx.Err() and later submissions with ErrClosed.
func New(ctx context.Context, opts ...Option) *Queue {
	o := options{parallel: 1}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = slog.Default()
	}

	p := pipeline.New("fifo").
		Then(runSubmission, nil).
		Catch(func(context.Context, *pipeline.Pipeline, error) (interface{}, error) { return nil, nil })
	if o.observer != nil {
		p.Subscribe(o.observer)
	}

	q := &Queue{c: pipeline.NewCollection(), log: log}
	q.series = p.RunSeries(ctx, q.c,
		pipeline.Infinite(),
		pipeline.WithCollect(false),
		pipeline.WithParallel(o.parallel),
		pipeline.WithLogger(log),
	)
	go q.watch()
	return q
}

// Submit queues task and returns a future for its outcome. It never blocks.
//
// A Task, func(context.Context) (interface{}, error), func() (interface{}, error)
// or func() interface{} is called when its turn comes; a future.Awaitable is
// awaited; any other value becomes the result as is. A task that returns an
// Awaitable is awaited as well.
func (q *Queue) Submit(task interface{}) *future.Future {
	d := future.Defer()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		d.Reject(ErrClosed)
		return d.Future
	}
	q.c.Append(&submission{task: task, d: d})
	return d.Future
}

// Len reports the number of tasks waiting to start.
func (q *Queue) Len() int { return q.c.Len() }

// Close stops accepting work and waits until every queued task has finished
// or ctx ends. Later calls to Submit reject with ErrClosed. The returned error
// is the abort reason when the queue was aborted.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		_ = q.series.Finish()
	}
	q.mu.Unlock()
	_, err := q.series.Await(ctx)
	return err
}

// Abort stops the queue without running the tasks still waiting; they are
// rejected with reason (pipeline.ErrAborted when nil). Running tasks finish.
func (q *Queue) Abort(reason error) {
	q.series.Abort(reason)
}

// watch rejects whatever is left in the collection once the series ends.
func (q *Queue) watch() {
	<-q.series.Done()
	_, err := q.series.Result()

	q.mu.Lock()
	q.closed = true
	left := q.c.Drain()
	q.mu.Unlock()

	if err == nil {
		err = ErrClosed
	}
	if len(left) > 0 {
		q.log.Debug("fifo rejecting queued tasks", "count", len(left), "reason", err)
	}
	for _, it := range left {
		it.(*submission).d.Reject(err)
	}
}

func runSubmission(ctx context.Context, _ *pipeline.Pipeline, v interface{}) (interface{}, error) {
	sub := v.(*submission)
	defer func() {
		if r := recover(); r != nil {
			sub.d.Reject(&pipeline.PanicError{Value: r})
		}
	}()
	out, err := invoke(ctx, sub.task)
	if err == nil {
		if aw, ok := out.(future.Awaitable); ok {
			out, err = aw.Await(ctx)
		}
	}
	sub.d.Settle(out, err)
	return nil, err
}

func invoke(ctx context.Context, task interface{}) (interface{}, error) {
	switch t := task.(type) {
	case Task:
		return t(ctx)
	case func(context.Context) (interface{}, error):
		return t(ctx)
	case func() (interface{}, error):
		return t()
	case func() interface{}:
		return t(), nil
	case future.Awaitable:
		return t.Await(ctx)
	default:
		return task, nil
	}
}
