package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// EnvPrefix is prepended to every variable name, e.g. ZOHOAUTH_HTTP_TIMEOUT.
const EnvPrefix = "ZOHOAUTH"

// Config holds runtime settings that are not credentials.
// Credentials only ever come from the command line.
type Config struct {
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	FallbackInterval time.Duration `envconfig:"FALLBACK_INTERVAL" default:"10s"`
}

// Load reads the configuration from the environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s_HTTP_TIMEOUT must be positive, got %s", EnvPrefix, c.HTTPTimeout)
	}
	if c.FallbackInterval < time.Second {
		return fmt.Errorf("%s_FALLBACK_INTERVAL must be at least 1s, got %s", EnvPrefix, c.FallbackInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s_LOG_LEVEL: %w", EnvPrefix, err)
	}
	return nil
}

// Level returns the parsed log level. verbose forces debug.
func (c Config) Level(verbose bool) logrus.Level {
	if verbose {
		return logrus.DebugLevel
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
