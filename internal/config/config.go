package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, logging, the interactive console,
// the messenger core and in-process metrics.
type Config struct {
	// Environment specifies the current running environment (development, production)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment" validate:"oneof=development production"` //nolint: lll

	// Log contains logging related configurations
	Log struct {
		// Level is the minimum level written to the log (debug, info, warn, error)
		Level string `env:"LOG_LEVEL" env-default:"info" yaml:"level" validate:"oneof=debug info warn error"`
	} `yaml:"log"`

	// Console contains all interactive console related configurations
	Console struct {
		// Prompt is printed before reading each command
		Prompt string `env:"CONSOLE_PROMPT" env-default:"messenger> " yaml:"prompt"`
		// TimeFormat is the Go time layout used to render message timestamps
		TimeFormat string `env:"CONSOLE_TIME_FORMAT" env-default:"2006-01-02 15:04:05" yaml:"timeFormat" validate:"required"` //nolint: lll
		// Timezone is the IANA zone name message timestamps are rendered in ("Local" for the host zone)
		Timezone string `env:"CONSOLE_TIMEZONE" env-default:"Local" yaml:"timezone" validate:"required"`
		// SkipDemoSeed disables seeding demo users and messages into an empty store at startup
		SkipDemoSeed bool `env:"CONSOLE_SKIP_DEMO_SEED" yaml:"skipDemoSeed"`
	} `yaml:"console"`

	// Messenger contains configurations of the messenger core
	Messenger struct {
		// IDStrategy selects how user and message IDs are generated (uuid, sequence)
		IDStrategy string `env:"MESSENGER_ID_STRATEGY" env-default:"uuid" yaml:"idStrategy" validate:"oneof=uuid sequence"`
	} `yaml:"messenger"`

	// Metrics contains in-process metrics configurations
	Metrics struct {
		// Disabled turns operation metrics off
		Disabled bool `env:"METRICS_DISABLED" yaml:"disabled"`
	} `yaml:"metrics"`

	// GracefulShutdownTimeout is the maximum duration to wait for cleanup after an interrupt
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"5s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Location resolves the configured console timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Console.Timezone)
	if err != nil {
		return nil, fmt.Errorf("could not load timezone %q: %w", c.Console.Timezone, err)
	}

	return loc, nil
}

// Load receives the path for yaml config file and returns a filled Config struct.
// A missing file is not an error: defaults and environment variables are used.
func Load(configPath string) (*Config, error) {
	var cfg Config

	_, statErr := os.Stat(configPath)
	switch {
	case configPath == "" || errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read config from env: %w", err)
		}
	default:
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
