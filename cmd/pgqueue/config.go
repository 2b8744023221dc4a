package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration for the pgqueue CLI.
type Config struct {
	// DSN is the Postgres connection URL.
	DSN string `yaml:"dsn"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`

	Worker WorkerConfig `yaml:"worker"`
}

// WorkerConfig configures the `pgqueue work` command.
type WorkerConfig struct {
	// Concurrency is the number of concurrent workers. Default: 4.
	Concurrency int `yaml:"concurrency"`

	// PollInterval caps the sleep between polls of an empty queue.
	// Default: 1s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// RateLimit caps sustained jobs per second across the pool.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
}

func defaultConfig() *Config {
	return &Config{
		DSN:      os.Getenv("PGQUEUE_DSN"),
		LogLevel: "info",
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: time.Second,
		},
	}
}

// LoadConfig reads the YAML config at path, falling back to
// $HOME/.pgqueue/config.yaml. A missing file is not an error: defaults
// and the PGQUEUE_DSN environment variable apply.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".pgqueue", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) logLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
