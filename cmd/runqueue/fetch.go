package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/dcshock/runqueue/config"
	"github.com/dcshock/runqueue/httpstages"
	"github.com/dcshock/runqueue/internal/appconfig"
	"github.com/dcshock/runqueue/observer"
	"github.com/dcshock/runqueue/pipeline"
)

// pageResult is the JSON line printed for every URL.
type pageResult struct {
	URL    string `json:"url"`
	RunID  string `json:"run_id,omitempty"`
	Bytes  int    `json:"bytes"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// fetchFailure keeps the URL of a failed fetch so the catch step can report it.
type fetchFailure struct {
	url string
	err error
}

func (f *fetchFailure) Error() string { return f.err.Error() }
func (f *fetchFailure) Unwrap() error { return f.err }

// lineWriter serializes JSON lines from concurrent workers.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter { return &lineWriter{enc: json.NewEncoder(w)} }

func (l *lineWriter) write(v interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(v)
}

// fetchStep fetches the input URL with the configured timeout and retries.
func fetchStep(client *http.Client, cfg appconfig.HTTPConfig) pipeline.SuccessFunc {
	fetch := pipeline.WithTimeout(httpstages.Fetch(client), cfg.Timeout)
	if cfg.Retries > 0 {
		fetch = pipeline.Retry(fetch, pipeline.RetryPolicy{
			MaxAttempts: cfg.Retries + 1,
			Backoff:     cfg.Backoff,
			Multiplier:  2,
			ShouldRetry: pipeline.IsRetryable,
		})
	}
	return func(ctx context.Context, p *pipeline.Pipeline, v interface{}) (interface{}, error) {
		url := v.(string)
		runID, _ := pipeline.RunIDFromContext(ctx)
		body, err := fetch(ctx, p, url)
		if err != nil {
			return nil, &fetchFailure{url: url, err: err}
		}
		return pageResult{URL: url, RunID: runID, Bytes: len(body.([]byte))}, nil
	}
}

// reportFailure turns a fetch failure into a result line so one bad URL does
// not abort the series. Other errors pass through.
func reportFailure(ctx context.Context, _ *pipeline.Pipeline, err error) (interface{}, error) {
	var ff *fetchFailure
	if !errors.As(err, &ff) {
		return nil, err
	}
	runID, _ := pipeline.RunIDFromContext(ctx)
	res := pageResult{URL: ff.url, RunID: runID, Error: ff.err.Error()}
	var serr *httpstages.StatusError
	if errors.As(err, &serr) {
		res.Status = serr.Code
	}
	return res, nil
}

// fetchPipeline returns the built-in pipeline: fetch, report failures as
// results, emit one line per URL.
func fetchPipeline(client *http.Client, cfg appconfig.HTTPConfig, emit func(pageResult) error) *pipeline.Pipeline {
	return pipeline.New("fetch").
		Then(fetchStep(client, cfg), nil).
		Catch(reportFailure).
		Then(func(_ context.Context, _ *pipeline.Pipeline, v interface{}) (interface{}, error) {
			res := v.(pageResult)
			return res, emit(res)
		}, nil)
}

func runFetch(ctx context.Context, cfg *appconfig.Config, urls []string, log *slog.Logger, stdout io.Writer) (int, error) {
	out := newLineWriter(stdout)
	var mu sync.Mutex
	failed := 0
	p := fetchPipeline(&http.Client{}, cfg.HTTP, func(res pageResult) error {
		if res.Error != "" {
			mu.Lock()
			failed++
			mu.Unlock()
		}
		return out.write(res)
	})
	p.Subscribe(observer.NewLogObserver(log, false))

	items := make([]interface{}, len(urls))
	for i, u := range urls {
		items[i] = u
	}
	_, err := p.RunSeries(ctx, pipeline.NewCollection(items...),
		pipeline.WithParallel(cfg.Series.Parallel),
		pipeline.WithCollect(false),
		pipeline.WithLogger(log),
	).Await(ctx)
	mu.Lock()
	defer mu.Unlock()
	return failed, err
}

// runConfigured runs the pipeline defined in cfg.Pipeline.File. The URLs are
// available to it as the "args" source; its collected results are printed as
// JSON lines. Registered steps: fetch (pageResult with retries), get (raw
// body), parse_json, length; catch: report; observer: log.
func runConfigured(ctx context.Context, cfg *appconfig.Config, urls []string, log *slog.Logger, stdout io.Writer) (int, error) {
	data, err := os.ReadFile(cfg.Pipeline.File)
	if err != nil {
		return 0, err
	}
	pcfg, err := config.ParsePipelineConfig(data)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", cfg.Pipeline.File, err)
	}
	if pcfg.Series.Infinite {
		return 0, fmt.Errorf("%s: infinite series cannot be run from the command line", cfg.Pipeline.File)
	}
	if pcfg.Source == "" {
		pcfg.Source = "args"
	}

	client := &http.Client{}
	reg := config.NewRegistry()
	reg.Register("fetch", fetchStep(client, cfg.HTTP))
	reg.Register("get", httpstages.Fetch(client))
	reg.Register("parse_json", httpstages.ParseJSON())
	reg.Register("length", pipeline.Transform(func(_ context.Context, body []byte) (int, error) {
		return len(body), nil
	}))
	reg.RegisterCatch("report", reportFailure)

	sources := config.NewSourceRegistry()
	sources.Register("args", func(context.Context) ([]interface{}, error) {
		items := make([]interface{}, len(urls))
		for i, u := range urls {
			items[i] = u
		}
		return items, nil
	})
	observers := config.NewObserverRegistry()
	observers.Register("log", observer.NewLogObserver(log, true))

	extra := []pipeline.SeriesOption{pipeline.WithLogger(log)}
	if pcfg.Series.Parallel == 0 {
		extra = append(extra, pipeline.WithParallel(cfg.Series.Parallel))
	}
	opts := &config.BuildOptions{SourceRegistry: sources, ObserverRegistry: observers}
	s, err := config.RunSeries(ctx, reg, pcfg, opts, extra...)
	if err != nil {
		return 0, err
	}
	results, err := s.Await(ctx)
	if err != nil {
		return 0, err
	}
	out := newLineWriter(stdout)
	failed := 0
	list, _ := results.([]interface{})
	for _, r := range list {
		if pr, ok := r.(pageResult); ok && pr.Error != "" {
			failed++
		}
		if err := out.write(r); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
