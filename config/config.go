package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcshock/runqueue/pipeline"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// PipelineConfig describes one pipeline and how to run it as a series.
//
//	name: crawl
//	source: seeds
//	observers: [log]
//	series:
//	  parallel: 4
//	steps:
//	  - fetch
//	  - name: parse
//	    retry: exponential
//	    timeout: 60s
//	  - catch: fallback
type PipelineConfig struct {
	Name      string       `yaml:"name"`
	Source    string       `yaml:"source"`
	Observers []string     `yaml:"observers" validate:"dive,required"`
	Steps     []StepRef    `yaml:"steps" validate:"dive"`
	Series    SeriesConfig `yaml:"series"`
}

// StepRef is one step: a handler name, a catch name, or both, plus the
// modifiers applied to the success handler. A bare YAML scalar is the name.
type StepRef struct {
	Name  string `yaml:"name" validate:"required_without=Catch"`
	Catch string `yaml:"catch"`

	Timeout Duration `yaml:"timeout" validate:"gte=0"`

	// Retry is "fixed", "exponential" or empty. Initial is the first delay
	// (1s when unset); Multiplier, Cap and MaxAttempts shape the backoff.
	Retry       string   `yaml:"retry" validate:"omitempty,oneof=fixed exponential"`
	Initial     Duration `yaml:"initial" validate:"gte=0"`
	Multiplier  float64  `yaml:"multiplier" validate:"omitempty,gte=1"`
	Cap         Duration `yaml:"cap" validate:"gte=0"`
	MaxAttempts int      `yaml:"max_attempts" validate:"gte=0"`
}

func (s *StepRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&s.Name)
	}
	type plain StepRef
	return value.Decode((*plain)(s))
}

// SeriesConfig holds the RunSeries options of a configured pipeline.
type SeriesConfig struct {
	Parallel int   `yaml:"parallel" validate:"gte=0"`
	Collect  *bool `yaml:"collect"`
	Infinite bool  `yaml:"infinite"`
}

// Options returns the series options set in s. Unset fields add nothing.
func (s SeriesConfig) Options() []pipeline.SeriesOption {
	var opts []pipeline.SeriesOption
	if s.Parallel > 0 {
		opts = append(opts, pipeline.WithParallel(s.Parallel))
	}
	if s.Infinite {
		opts = append(opts, pipeline.Infinite())
	}
	if s.Collect != nil {
		opts = append(opts, pipeline.WithCollect(*s.Collect))
	}
	return opts
}

// Duration is a time.Duration written in YAML as "60s", "5m" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values that YAML decoding accepts but a build would
// reject or misread.
func (c *PipelineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid pipeline %q: %s", c.Name, strings.Join(msgs, ", "))
	}
	return nil
}

// ParsePipelineConfig decodes and validates a single pipeline definition.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MultiPipelineConfig is a file of named pipelines under a "pipelines" key.
// An entry without a name takes its key.
//
//	pipelines:
//	  ingest:
//	    steps: [fetch, parse]
//	    series:
//	      parallel: 4
//	  notify:
//	    steps: [validate, send]
type MultiPipelineConfig struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// ParseMultiPipelineConfig decodes a MultiPipelineConfig and validates every
// entry.
func ParseMultiPipelineConfig(data []byte) (*MultiPipelineConfig, error) {
	var cfg MultiPipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	for key, p := range cfg.Pipelines {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pipelines.%s: %w", key, err)
		}
	}
	return &cfg, nil
}
