package observer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dcshock/runqueue/pipeline"
)

// Run statuses reported by Recorder.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RunRecord is one observed pipeline run. Payload and Result hold JSON
// snapshots taken when the value was observed; values that cannot be encoded
// are left nil.
type RunRecord struct {
	RunID    string
	Pipeline string
	Status   string
	Payload  json.RawMessage
	Result   json.RawMessage
	Error    string
	Started  time.Time
	Duration time.Duration
	Steps    []StepRecord
}

// StepRecord is one handler call within a run.
type StepRecord struct {
	Index    int
	Status   string
	Input    json.RawMessage
	Output   json.RawMessage
	Error    string
	Duration time.Duration
}

// Recorder keeps an in-memory record of every run and step it observes, in
// start order. It implements pipeline.Observer and pipeline.StepObserver and is
// safe for concurrent runs.
type Recorder struct {
	mu    sync.Mutex
	order []string
	runs  map[string]*RunRecord
	now   func() time.Time
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{runs: make(map[string]*RunRecord), now: time.Now}
}

// Start implements pipeline.Observer. It records the run with status "running".
func (r *Recorder) Start(_ context.Context, run pipeline.RunInfo, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = &RunRecord{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Status:   StatusRunning,
		Payload:  marshalOptional(value),
		Started:  r.now(),
	}
}

// Resolved implements pipeline.Observer.
func (r *Recorder) Resolved(_ context.Context, run pipeline.RunInfo, result, _ interface{}, d time.Duration) {
	r.complete(run.ID, StatusSuccess, marshalOptional(result), "", d)
}

// Rejected implements pipeline.Observer.
func (r *Recorder) Rejected(_ context.Context, run pipeline.RunInfo, err error, _ interface{}, d time.Duration) {
	r.complete(run.ID, StatusFailed, nil, err.Error(), d)
}

func (r *Recorder) complete(runID, status string, result json.RawMessage, errText string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[runID]
	if !ok {
		return
	}
	rec.Status, rec.Result, rec.Error, rec.Duration = status, result, errText, d
}

// BeforeStep implements pipeline.StepObserver.
func (r *Recorder) BeforeStep(_ context.Context, run pipeline.RunInfo, index int, input interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[run.ID]
	if !ok {
		return
	}
	in := input
	if err, isErr := input.(error); isErr {
		in = err.Error()
	}
	rec.Steps = append(rec.Steps, StepRecord{Index: index, Status: StatusRunning, Input: marshalOptional(in)})
}

// AfterStep implements pipeline.StepObserver.
func (r *Recorder) AfterStep(_ context.Context, run pipeline.RunInfo, index int, _, output interface{}, err error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[run.ID]
	if !ok || len(rec.Steps) == 0 {
		return
	}
	step := &rec.Steps[len(rec.Steps)-1]
	if step.Index != index {
		return
	}
	step.Duration = d
	if err != nil {
		step.Status, step.Error = StatusFailed, err.Error()
		return
	}
	step.Status, step.Output = StatusSuccess, marshalOptional(output)
}

// Run returns a copy of the record for runID.
func (r *Recorder) Run(runID string) (RunRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return copyRecord(rec), true
}

// Runs returns copies of all records in start order.
func (r *Recorder) Runs() []RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyRecord(r.runs[id]))
	}
	return out
}

// Count returns the number of recorded runs with the given status.
func (r *Recorder) Count(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.runs {
		if rec.Status == status {
			n++
		}
	}
	return n
}

// Reset forgets every recorded run.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.runs = make(map[string]*RunRecord)
}

func copyRecord(rec *RunRecord) RunRecord {
	out := *rec
	out.Steps = append([]StepRecord(nil), rec.Steps...)
	return out
}

func marshalOptional(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

var (
	_ pipeline.Observer     = (*Recorder)(nil)
	_ pipeline.StepObserver = (*Recorder)(nil)
)
