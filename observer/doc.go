// Package observer provides pipeline.Observer implementations.
//
//   - LogObserver writes run and step events to a *slog.Logger with run_id,
//     pipeline and duration_ms attributes.
//   - Recorder keeps every observed run and its steps in memory, with JSON
//     snapshots of payloads and results, for inspection and tests.
//
// Combine several with pipeline.MultiObserver, or register them by name in a
// config.ObserverRegistry so YAML pipeline definitions can refer to them.
package observer
