package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/taskwatch/internal/runner"
	"github.com/aristath/taskwatch/internal/substrate"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// DefaultPaths returns the conventional config locations.
// Global: ~/.taskwatch/config.json
// Project: .taskwatch/config.json (relative to cwd)
func DefaultPaths() (global, project string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".taskwatch", "config.json"), filepath.Join(".taskwatch", "config.json"), nil
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	global, project, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(global, project)
}

// mergeConfigFile decodes a JSON file onto base. Only keys present in the file
// override base. Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid field as a *runner.ConfigError.
func (c *Config) Validate() error {
	switch c.Observer {
	case ObserverInteractive, ObserverDebug, ObserverSilent, ObserverTUI:
	default:
		return &runner.ConfigError{Field: "observer", Reason: fmt.Sprintf("must be one of interactive, debug, silent, tui; got %q", c.Observer)}
	}
	if c.Retries < 0 {
		return &runner.ConfigError{Field: "retries", Reason: fmt.Sprintf("must not be negative, got %d", c.Retries)}
	}
	return c.RunnerConfig().Validate()
}

// RunnerConfig converts the scheduling fields into a runner configuration.
// Observer, substrate and logger are left for the caller to wire.
func (c *Config) RunnerConfig() runner.Config {
	return runner.Config{
		MaxConcurrency: c.MaxConcurrency,
		Timeout:        time.Duration(c.Timeout),
		Grace:          time.Duration(c.Grace),
		PollInterval:   time.Duration(c.PollInterval),
	}
}

// SubstrateFactory returns the execution substrate factory the configuration selects.
func (c *Config) SubstrateFactory() substrate.Factory {
	if !c.Breaker.Enabled {
		return substrate.LocalFactory
	}
	return substrate.BreakerFactory(substrate.LocalFactory, substrate.BreakerConfig{
		MaxFailures: c.Breaker.MaxFailures,
		OpenTimeout: time.Duration(c.Breaker.OpenTimeout),
	})
}
