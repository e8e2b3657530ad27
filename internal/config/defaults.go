package config

import (
	"time"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 4,
		Timeout:        Duration(30 * time.Second),
		Grace:          Duration(5 * time.Second),
		PollInterval:   Duration(time.Second),
		Observer:       ObserverInteractive,
		ClearScreen:    true,
		Retries:        0,
		Breaker: BreakerConfig{
			Enabled:     false,
			MaxFailures: 5,
			OpenTimeout: Duration(30 * time.Second),
		},
	}
}
