package config

import (
	"context"
	"fmt"
	"time"

	"github.com/dcshock/runqueue/pipeline"
	"gopkg.in/yaml.v3"
)

// BuildOptions supplies the registries a configuration may refer to besides
// the handler registry.
type BuildOptions struct {
	// SourceRegistry is used when PipelineConfig.Source is set (see BuildCollection).
	SourceRegistry *SourceRegistry

	// ObserverRegistry is used when PipelineConfig.Observers is set. The named
	// observers are subscribed to the built pipeline.
	ObserverRegistry *ObserverRegistry
}

// BuildPipeline builds a pipeline.Pipeline from config and registry. Handler names in config must be registered.
func BuildPipeline(reg *Registry, cfg *PipelineConfig, opts *BuildOptions) (*pipeline.Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	p := pipeline.New(cfg.Name)
	for i, ref := range cfg.Steps {
		step, err := buildStep(reg, ref)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		p.Then(step.OnSuccess, step.OnFailure)
	}
	obs, err := BuildObserver(cfg, opts)
	if err != nil {
		return nil, err
	}
	if obs != nil {
		p.Subscribe(obs)
	}
	return p, nil
}

func buildStep(reg *Registry, ref StepRef) (pipeline.Step, error) {
	var step pipeline.Step
	if ref.Name == "" && ref.Catch == "" {
		return step, fmt.Errorf("name or catch required")
	}
	if ref.Name != "" {
		fn, ok := reg.Get(ref.Name)
		if !ok {
			return step, fmt.Errorf("%q not in registry", ref.Name)
		}
		fn, err := wrapStep(fn, ref)
		if err != nil {
			return step, fmt.Errorf("%q: %w", ref.Name, err)
		}
		step.OnSuccess = fn
	} else if ref.Retry != "" || ref.Timeout > 0 {
		return step, fmt.Errorf("catch %q: retry and timeout apply to named steps only", ref.Catch)
	}
	if ref.Catch != "" {
		fn, ok := reg.GetCatch(ref.Catch)
		if !ok {
			return step, fmt.Errorf("catch %q not in registry", ref.Catch)
		}
		step.OnFailure = fn
	}
	return step, nil
}

// BuildObserver returns a pipeline.Observer for the config's Observers list by looking up each name
// in BuildOptions.ObserverRegistry and combining them with pipeline.MultiObserver.
// If cfg.Observers is empty, returns (nil, nil). If any observer name is not registered, returns an error.
func BuildObserver(cfg *PipelineConfig, opts *BuildOptions) (pipeline.Observer, error) {
	if cfg == nil || len(cfg.Observers) == 0 {
		return nil, nil
	}
	if opts == nil || opts.ObserverRegistry == nil {
		return nil, fmt.Errorf("observers %v require BuildOptions.ObserverRegistry", cfg.Observers)
	}
	list := make([]pipeline.Observer, 0, len(cfg.Observers))
	for i, name := range cfg.Observers {
		obs, ok := opts.ObserverRegistry.Get(name)
		if !ok {
			return nil, fmt.Errorf("observer %d: %q not in registry", i, name)
		}
		list = append(list, obs)
	}
	return pipeline.MultiObserver(list...), nil
}

// BuildCollection returns a collection seeded from the config's Source. With
// no Source the collection starts empty.
func BuildCollection(ctx context.Context, cfg *PipelineConfig, opts *BuildOptions) (*pipeline.Collection, error) {
	c := pipeline.NewCollection()
	if cfg == nil || cfg.Source == "" {
		return c, nil
	}
	if opts == nil || opts.SourceRegistry == nil {
		return nil, fmt.Errorf("source %q requires BuildOptions.SourceRegistry", cfg.Source)
	}
	src, ok := opts.SourceRegistry.Get(cfg.Source)
	if !ok {
		return nil, fmt.Errorf("source %q not in registry", cfg.Source)
	}
	items, err := src(ctx)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", cfg.Source, err)
	}
	c.Append(items...)
	return c, nil
}

// RunSeries builds the pipeline and its collection from cfg and starts a
// series with the configured options. extra options are applied after the
// configured ones.
func RunSeries(ctx context.Context, reg *Registry, cfg *PipelineConfig, opts *BuildOptions, extra ...pipeline.SeriesOption) (*pipeline.Series, error) {
	p, err := BuildPipeline(reg, cfg, opts)
	if err != nil {
		return nil, err
	}
	c, err := BuildCollection(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return p.RunSeries(ctx, c, append(cfg.Series.Options(), extra...)...), nil
}

func wrapStep(fn pipeline.SuccessFunc, ref StepRef) (pipeline.SuccessFunc, error) {
	if ref.Timeout > 0 {
		fn = pipeline.WithTimeout(fn, ref.Timeout.Duration())
	}
	if ref.Retry == "" {
		return fn, nil
	}
	initial := ref.Initial.Duration()
	if initial <= 0 {
		initial = time.Second
	}
	policy := pipeline.RetryPolicy{
		Backoff:     initial,
		MaxAttempts: ref.MaxAttempts,
		ShouldRetry: pipeline.IsRetryable,
	}
	switch ref.Retry {
	case "fixed":
	case "exponential":
		policy.Multiplier = 2
		if ref.Multiplier > 0 {
			policy.Multiplier = ref.Multiplier
		}
		policy.Cap = ref.Cap.Duration()
	default:
		return nil, fmt.Errorf("retry %q not supported (use \"fixed\" or \"exponential\")", ref.Retry)
	}
	return pipeline.Retry(fn, policy), nil
}

// BuildAllPipelines builds a pipeline.Pipeline for each entry in multi. Keys are pipeline names.
// If a pipeline config's Name is empty, the map key is used as the pipeline name.
func BuildAllPipelines(reg *Registry, multi *MultiPipelineConfig, opts *BuildOptions) (map[string]*pipeline.Pipeline, error) {
	if multi == nil {
		return nil, fmt.Errorf("MultiPipelineConfig is nil")
	}
	out := make(map[string]*pipeline.Pipeline, len(multi.Pipelines))
	for name, cfg := range multi.Pipelines {
		if cfg.Name == "" {
			cfg.Name = name
		}
		p, err := BuildPipeline(reg, &cfg, opts)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

// PipelineConfigFromMap parses a single pipeline from a map (e.g. one key in a multi-pipeline YAML).
// The key is the pipeline name; the value is the steps list.
func PipelineConfigFromMap(name string, steps interface{}) (*PipelineConfig, error) {
	// Re-encode and decode so we can reuse StepRef unmarshaling
	data, err := yaml.Marshal(map[string]interface{}{"name": name, "steps": steps})
	if err != nil {
		return nil, err
	}
	return ParsePipelineConfig(data)
}
