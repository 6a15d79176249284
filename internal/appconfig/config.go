// Package appconfig loads process configuration for the runqueue command from
// flags, RUNQUEUE_* environment variables, an optional .env file and an
// optional config file.
package appconfig

import "time"

// Config holds all process configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	Series   SeriesConfig   `mapstructure:"series" validate:"required"`
	HTTP     HTTPConfig     `mapstructure:"http" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// SeriesConfig contains scheduler settings.
type SeriesConfig struct {
	Parallel int `mapstructure:"parallel" validate:"gte=1,lte=1024"`
}

// HTTPConfig contains outbound request settings.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries int           `mapstructure:"retries" validate:"gte=0,lte=20"`
	Backoff time.Duration `mapstructure:"backoff" validate:"gte=0"`
}

// PipelineConfig points at an optional YAML pipeline definition that replaces
// the built-in fetch pipeline.
type PipelineConfig struct {
	File string `mapstructure:"file" validate:"omitempty,file"`
}
