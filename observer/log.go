package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcshock/runqueue/pipeline"
)

// LogObserver writes one structured record per run event. Run start and
// resolution are logged at Debug, rejection at Warn. Step records are written
// at Debug only when Steps is true.
type LogObserver struct {
	Logger *slog.Logger
	Steps  bool
}

// NewLogObserver returns a LogObserver writing to logger (slog.Default() when nil).
func NewLogObserver(logger *slog.Logger, steps bool) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger, Steps: steps}
}

func (o *LogObserver) attrs(run pipeline.RunInfo) []interface{} {
	return []interface{}{slog.String("run_id", run.ID), slog.String("pipeline", run.Pipeline)}
}

// Start implements pipeline.Observer.
func (o *LogObserver) Start(ctx context.Context, run pipeline.RunInfo, _ interface{}) {
	o.Logger.DebugContext(ctx, "run started", o.attrs(run)...)
}

// Resolved implements pipeline.Observer.
func (o *LogObserver) Resolved(ctx context.Context, run pipeline.RunInfo, _, _ interface{}, d time.Duration) {
	o.Logger.DebugContext(ctx, "run resolved", append(o.attrs(run), slog.Int64("duration_ms", d.Milliseconds()))...)
}

// Rejected implements pipeline.Observer.
func (o *LogObserver) Rejected(ctx context.Context, run pipeline.RunInfo, err error, _ interface{}, d time.Duration) {
	o.Logger.WarnContext(ctx, "run rejected",
		append(o.attrs(run), slog.Int64("duration_ms", d.Milliseconds()), slog.Any("error", err))...)
}

// BeforeStep implements pipeline.StepObserver.
func (o *LogObserver) BeforeStep(ctx context.Context, run pipeline.RunInfo, index int, _ interface{}) {
	if !o.Steps {
		return
	}
	o.Logger.DebugContext(ctx, "step started", append(o.attrs(run), slog.Int("step", index))...)
}

// AfterStep implements pipeline.StepObserver.
func (o *LogObserver) AfterStep(ctx context.Context, run pipeline.RunInfo, index int, _, _ interface{}, err error, d time.Duration) {
	if !o.Steps {
		return
	}
	args := append(o.attrs(run), slog.Int("step", index), slog.Int64("duration_ms", d.Milliseconds()))
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	o.Logger.DebugContext(ctx, "step finished", args...)
}
