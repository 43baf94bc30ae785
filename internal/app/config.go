package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // composition config: .hcl file or directory, .yaml/.yml file
	OutputPath string // supergraph SDL destination; empty means the app writer

	LogFormat     string
	LogLevel      string
	Workers       int
	MaxGraphNodes int
	Trace         bool
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.Workers < 0 {
		return nil, errors.New("workers must not be negative")
	}
	if cfg.MaxGraphNodes < 0 {
		return nil, errors.New("max graph nodes must not be negative")
	}
	return &cfg, nil
}
