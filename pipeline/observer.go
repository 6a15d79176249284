package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// RunInfo identifies one application of a pipeline.
type RunInfo struct {
	ID       string // generated per run; also available to steps via RunIDFromContext
	Pipeline string // Pipeline.Name
}

// Observer receives lifecycle notifications for every run of the pipelines it
// is subscribed to. Start is delivered synchronously before the first step
// runs; exactly one of Resolved or Rejected follows when the run settles.
// Notifications are delivered in subscription order on the goroutine that
// executes the run, so implementations shared by concurrent runs must be safe
// for concurrent use. A panicking observer is logged and skipped; it does not
// change the run's outcome or the notifications other observers receive.
type Observer interface {
	Start(ctx context.Context, run RunInfo, value interface{})
	Resolved(ctx context.Context, run RunInfo, result, original interface{}, d time.Duration)
	Rejected(ctx context.Context, run RunInfo, err error, original interface{}, d time.Duration)
}

// StepObserver is an optional extension of Observer. When a subscribed
// observer implements it, BeforeStep and AfterStep are called around every
// handler invocation. input is the step's value, or its error when the step's
// failure handler runs.
type StepObserver interface {
	BeforeStep(ctx context.Context, run RunInfo, index int, input interface{})
	AfterStep(ctx context.Context, run RunInfo, index int, input, output interface{}, err error, d time.Duration)
}

// Hooks adapts plain functions to Observer and StepObserver. Nil fields are
// skipped.
type Hooks struct {
	OnStart      func(ctx context.Context, run RunInfo, value interface{})
	OnResolved   func(ctx context.Context, run RunInfo, result, original interface{}, d time.Duration)
	OnRejected   func(ctx context.Context, run RunInfo, err error, original interface{}, d time.Duration)
	OnBeforeStep func(ctx context.Context, run RunInfo, index int, input interface{})
	OnAfterStep  func(ctx context.Context, run RunInfo, index int, input, output interface{}, err error, d time.Duration)
}

func (h *Hooks) Start(ctx context.Context, run RunInfo, value interface{}) {
	if h.OnStart != nil {
		h.OnStart(ctx, run, value)
	}
}

func (h *Hooks) Resolved(ctx context.Context, run RunInfo, result, original interface{}, d time.Duration) {
	if h.OnResolved != nil {
		h.OnResolved(ctx, run, result, original, d)
	}
}

func (h *Hooks) Rejected(ctx context.Context, run RunInfo, err error, original interface{}, d time.Duration) {
	if h.OnRejected != nil {
		h.OnRejected(ctx, run, err, original, d)
	}
}

func (h *Hooks) BeforeStep(ctx context.Context, run RunInfo, index int, input interface{}) {
	if h.OnBeforeStep != nil {
		h.OnBeforeStep(ctx, run, index, input)
	}
}

func (h *Hooks) AfterStep(ctx context.Context, run RunInfo, index int, input, output interface{}, err error, d time.Duration) {
	if h.OnAfterStep != nil {
		h.OnAfterStep(ctx, run, index, input, output, err, d)
	}
}

// MultiObserver returns an Observer that forwards every notification to each
// of observers in order. Step notifications reach the observers that
// implement StepObserver.
func MultiObserver(observers ...Observer) Observer {
	list := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return multiObserver(list)
}

type multiObserver []Observer

func (m multiObserver) Start(ctx context.Context, run RunInfo, value interface{}) {
	notifyStart(ctx, m, run, value)
}

func (m multiObserver) Resolved(ctx context.Context, run RunInfo, result, original interface{}, d time.Duration) {
	notifyResolved(ctx, m, run, result, original, d)
}

func (m multiObserver) Rejected(ctx context.Context, run RunInfo, err error, original interface{}, d time.Duration) {
	notifyRejected(ctx, m, run, err, original, d)
}

func (m multiObserver) BeforeStep(ctx context.Context, run RunInfo, index int, input interface{}) {
	notifyBeforeStep(ctx, m, run, index, input)
}

func (m multiObserver) AfterStep(ctx context.Context, run RunInfo, index int, input, output interface{}, err error, d time.Duration) {
	notifyAfterStep(ctx, m, run, index, input, output, err, d)
}

type subscription struct {
	id  uint64
	obs Observer
}

// Subscribe adds o to the pipeline's observers and returns a function that
// removes it again. Calling the returned function more than once is harmless.
func (p *Pipeline) Subscribe(o Observer) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSubID++
	id := p.nextSubID
	p.observers = append(p.observers, subscription{id: id, obs: o})
	return func() { p.unsubscribe(id) }
}

func (p *Pipeline) unsubscribe(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.observers {
		if s.id == id {
			p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
			return
		}
	}
}

// snapshotObservers copies the observer list so notifications are delivered
// without holding the lock; an observer may unsubscribe itself while handling one.
func (p *Pipeline) snapshotObservers() []Observer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.observers) == 0 {
		return nil
	}
	out := make([]Observer, len(p.observers))
	for i, s := range p.observers {
		out[i] = s.obs
	}
	return out
}

// deliver calls fn, recovering and logging a panic raised by the observer.
func deliver(ctx context.Context, run RunInfo, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().ErrorContext(ctx, "pipeline observer panicked",
				"pipeline", run.Pipeline, "run_id", run.ID, "event", event, "panic", r)
		}
	}()
	fn()
}

func notifyStart(ctx context.Context, observers []Observer, run RunInfo, value interface{}) {
	for _, o := range observers {
		deliver(ctx, run, "start", func() { o.Start(ctx, run, value) })
	}
}

func notifyResolved(ctx context.Context, observers []Observer, run RunInfo, result, original interface{}, d time.Duration) {
	for _, o := range observers {
		deliver(ctx, run, "resolved", func() { o.Resolved(ctx, run, result, original, d) })
	}
}

func notifyRejected(ctx context.Context, observers []Observer, run RunInfo, err error, original interface{}, d time.Duration) {
	for _, o := range observers {
		deliver(ctx, run, "rejected", func() { o.Rejected(ctx, run, err, original, d) })
	}
}

func notifyBeforeStep(ctx context.Context, observers []Observer, run RunInfo, index int, input interface{}) {
	for _, o := range observers {
		if so, ok := o.(StepObserver); ok {
			deliver(ctx, run, "before_step", func() { so.BeforeStep(ctx, run, index, input) })
		}
	}
}

func notifyAfterStep(ctx context.Context, observers []Observer, run RunInfo, index int, input, output interface{}, err error, d time.Duration) {
	for _, o := range observers {
		if so, ok := o.(StepObserver); ok {
			deliver(ctx, run, "after_step", func() { so.AfterStep(ctx, run, index, input, output, err, d) })
		}
	}
}
