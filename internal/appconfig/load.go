package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load
// (e.g. RUNQUEUE_SERIES_PARALLEL).
const EnvPrefix = "RUNQUEUE"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"parallel":      "series.parallel",
	"timeout":       "http.timeout",
	"retries":       "http.retries",
	"backoff":       "http.backoff",
	"pipeline-file": "pipeline.file",
}

// Load parses args and merges them with the environment and the optional
// config file named by --config. Precedence, highest first: flags,
// environment, config file, defaults. Variables from envFile (".env" when
// empty) are added to the environment first; a missing file is not an error.
// The remaining positional arguments are returned alongside the config.
func Load(args []string, envFile string) (*Config, []string, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	flags := pflag.NewFlagSet("runqueue", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or text")
	flags.Int("parallel", 4, "number of concurrent workers")
	flags.Duration("timeout", 10*time.Second, "per-request timeout")
	flags.Int("retries", 2, "retries for transient request failures")
	flags.Duration("backoff", 200*time.Millisecond, "initial retry backoff")
	flags.String("pipeline-file", "", "YAML pipeline definition to run instead of the built-in fetch pipeline")
	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, nil, err
	}
	return &cfg, flags.Args(), nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
