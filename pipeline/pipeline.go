package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dcshock/runqueue/future"
	"github.com/google/uuid"
)

// SuccessFunc handles the value produced by the previous step (or the run's
// initial value). It returns the value for the next step. The value may be a
// future.Awaitable, in which case its settlement is used instead.
type SuccessFunc func(ctx context.Context, p *Pipeline, value interface{}) (interface{}, error)

// FailureFunc handles the error produced by an earlier step. Returning a nil
// error recovers the chain: the returned value becomes the input of the next
// step's SuccessFunc.
type FailureFunc func(ctx context.Context, p *Pipeline, err error) (interface{}, error)

// Step is one link of a pipeline. Either handler may be nil; a nil handler
// passes the current outcome through unchanged.
type Step struct {
	OnSuccess SuccessFunc
	OnFailure FailureFunc
}

// Pipeline is a reusable, ordered chain of steps. Build it once with Then and
// Catch, then apply it to any number of values with Run, Do or RunSeries.
// A Pipeline is safe for concurrent use; runs started concurrently share the
// pipeline's observers and its key/value state.
type Pipeline struct {
	Name string

	mu        sync.RWMutex
	steps     []Step
	observers []subscription
	nextSubID uint64

	state sync.Map
}

// New returns an empty pipeline with the given name. The name is reported to
// observers and log records.
func New(name string) *Pipeline {
	return &Pipeline{Name: name}
}

// Then appends a step and returns p for chaining.
func (p *Pipeline) Then(onSuccess SuccessFunc, onFailure FailureFunc) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, Step{OnSuccess: onSuccess, OnFailure: onFailure})
	return p
}

// Catch appends a step with only a failure handler.
func (p *Pipeline) Catch(onFailure FailureFunc) *Pipeline {
	return p.Then(nil, onFailure)
}

// Steps returns a copy of the current step sequence.
func (p *Pipeline) Steps() []Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Set stores a pipeline-scoped value that every step can read through its
// *Pipeline parameter.
func (p *Pipeline) Set(key, value interface{}) { p.state.Store(key, value) }

// Get returns a value stored with Set.
func (p *Pipeline) Get(key interface{}) (interface{}, bool) { return p.state.Load(key) }

// runIDKey carries the run's identifier to steps.
type runIDKey struct{}

// RunIDFromContext returns the identifier of the run executing the step that
// received ctx.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// Run applies the pipeline to value in a new goroutine. The Start notification
// is delivered before Run returns; Resolved or Rejected is delivered before the
// returned future settles.
func (p *Pipeline) Run(ctx context.Context, value interface{}) *future.Future {
	d := future.Defer()
	steps := p.Steps()
	run := RunInfo{ID: uuid.New().String(), Pipeline: p.Name}
	ctx = context.WithValue(ctx, runIDKey{}, run.ID)
	observers := p.snapshotObservers()
	notifyStart(ctx, observers, run, value)
	go func() {
		d.Settle(p.execute(ctx, run, steps, observers, value))
	}()
	return d.Future
}

// Do applies the pipeline to value in the calling goroutine and returns the
// outcome. Notifications are the same as for Run.
func (p *Pipeline) Do(ctx context.Context, value interface{}) (interface{}, error) {
	steps := p.Steps()
	run := RunInfo{ID: uuid.New().String(), Pipeline: p.Name}
	ctx = context.WithValue(ctx, runIDKey{}, run.ID)
	observers := p.snapshotObservers()
	notifyStart(ctx, observers, run, value)
	return p.execute(ctx, run, steps, observers, value)
}

// execute folds steps over the initial value and delivers the terminal
// notification.
func (p *Pipeline) execute(ctx context.Context, run RunInfo, steps []Step, observers []Observer, initial interface{}) (interface{}, error) {
	start := time.Now()
	out, err := initial, error(nil)
	for i, step := range steps {
		handler := step.OnSuccess != nil
		if err != nil {
			handler = step.OnFailure != nil
		}
		if !handler {
			continue
		}
		var in interface{} = out
		if err != nil {
			in = err
		}
		notifyBeforeStep(ctx, observers, run, i, in)
		stepStart := time.Now()
		out, err = p.callStep(ctx, step, out, err)
		notifyAfterStep(ctx, observers, run, i, in, out, err, time.Since(stepStart))
	}
	if err != nil {
		notifyRejected(ctx, observers, run, err, initial, time.Since(start))
		return nil, err
	}
	notifyResolved(ctx, observers, run, out, initial, time.Since(start))
	return out, nil
}

// callStep invokes the handler that matches the current outcome and waits for
// any awaitable it returns. Panics become *PanicError failures.
func (p *Pipeline) callStep(ctx context.Context, step Step, value interface{}, err error) (out interface{}, outErr error) {
	defer func() {
		if r := recover(); r != nil {
			out, outErr = nil, &PanicError{Value: r}
		}
	}()
	if err != nil {
		out, outErr = step.OnFailure(ctx, p, err)
	} else {
		out, outErr = step.OnSuccess(ctx, p, value)
	}
	if outErr != nil {
		return nil, outErr
	}
	if aw, ok := out.(future.Awaitable); ok {
		return aw.Await(ctx)
	}
	return out, nil
}
