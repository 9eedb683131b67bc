// Package config loads runtime settings from an optional YAML file,
// a .env file and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/librescoot/eventfsm"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "EVENTFSM_"

// Timer modes
const (
	TimerModePolling = "polling"
	TimerModeAsync   = "async"
)

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	// ErrParsingConfig is returned when the file or environment cannot be parsed
	ErrParsingConfig = errors.New("failed to parse configuration")

	// ErrInvalidConfig is returned when a parsed value is out of range
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the runtime settings of a machine and the demo around it
type Config struct {
	TimerMode         string        `yaml:"timer_mode" env:"TIMER_MODE"`
	TickInterval      time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	Debug             bool          `yaml:"debug" env:"DEBUG"`
	QueuedTransitions bool          `yaml:"queued_transitions" env:"QUEUED_TRANSITIONS"`
	Capacity          int           `yaml:"capacity" env:"CAPACITY"`
	HistoryPath       string        `yaml:"history_path" env:"HISTORY_PATH"`
	LogFormat         string        `yaml:"log_format" env:"LOG_FORMAT"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL"`
	Durations         Durations     `yaml:"durations" envPrefix:"DURATION_"`
}

// Durations are how long the demo traffic light stays in each state
type Durations struct {
	Red    time.Duration `yaml:"red" env:"RED"`
	Green  time.Duration `yaml:"green" env:"GREEN"`
	Yellow time.Duration `yaml:"yellow" env:"YELLOW"`
}

// Default returns the settings used when nothing overrides them
func Default() Config {
	return Config{
		TimerMode:    TimerModePolling,
		TickInterval: eventfsm.DefaultTickInterval,
		HistoryPath:  "eventfsm-history.log",
		LogFormat:    LogFormatText,
		LogLevel:     "info",
		Durations: Durations{
			Red:    3 * time.Second,
			Green:  3 * time.Second,
			Yellow: time.Second,
		},
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty), a .env file in the working directory if present,
// and EVENTFSM_* environment variables.
func Load(path string) (Config, error) {
	// Ignore errors - the .env file might not exist and that's ok
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, errors.Join(ErrParsingConfig, err))
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every value is usable
func (c Config) Validate() error {
	switch c.TimerMode {
	case TimerModePolling, TimerModeAsync:
	default:
		return fmt.Errorf("timer_mode %q: %w", c.TimerMode, ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval %s: %w", c.TickInterval, ErrInvalidConfig)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity %d: %w", c.Capacity, ErrInvalidConfig)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("log_format %q: %w", c.LogFormat, ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"red":    c.Durations.Red,
		"green":  c.Durations.Green,
		"yellow": c.Durations.Yellow,
	} {
		if d <= 0 {
			return fmt.Errorf("durations.%s %s: %w", name, d, ErrInvalidConfig)
		}
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level %q: %w", c.LogLevel, errors.Join(ErrInvalidConfig, err))
	}
	return level, nil
}

// MachineOptions maps the settings onto machine options
func (c Config) MachineOptions(logger *slog.Logger) []eventfsm.MachineOption {
	opts := []eventfsm.MachineOption{
		eventfsm.WithLogger(logger),
		eventfsm.WithDebug(c.Debug),
		eventfsm.WithCapacity(c.Capacity),
	}
	if c.TimerMode == TimerModeAsync {
		opts = append(opts, eventfsm.WithAsyncTimers())
	} else {
		opts = append(opts, eventfsm.WithPollingTimers())
	}
	if c.QueuedTransitions {
		opts = append(opts, eventfsm.WithQueuedTransitions())
	}
	return opts
}
