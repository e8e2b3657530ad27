package runner

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/taskwatch/internal/monitor"
	"github.com/aristath/taskwatch/internal/substrate"
)

const (
	// DefaultGrace is the time a task gets to acknowledge a cooperative cancel.
	DefaultGrace = 5 * time.Second
	// DefaultPollInterval bounds each completion wait.
	DefaultPollInterval = time.Second
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("invalid runner configuration")

// ConfigError reports a malformed run configuration. It is returned before any dispatch.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid runner configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Config configures a Runner.
type Config struct {
	MaxConcurrency int               // Max tasks running at once (required, > 0)
	Timeout        time.Duration     // Max silence between heartbeats (required, > 0)
	Grace          time.Duration     // Time between cooperative and forced cancel (default 5s)
	PollInterval   time.Duration     // Completion wait per tick (default 1s)
	Observer       monitor.Observer  // Lifecycle notifications (default silent)
	Substrate      substrate.Factory // Opens the execution substrate (default substrate.LocalFactory)
	Logger         *log.Logger       // Diagnostics (default: standard logger prefixed with the run id)
	RunID          string            // Run identifier (default: random UUID)
}

// withDefaults fills optional fields. Required fields are left for Validate.
func (c Config) withDefaults() Config {
	if c.Grace == 0 {
		c.Grace = DefaultGrace
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Observer == nil {
		c.Observer = monitor.Silent{}
	}
	if c.Substrate == nil {
		c.Substrate = substrate.LocalFactory
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Logger == nil {
		c.Logger = log.New(log.Writer(), fmt.Sprintf("[run %s] ", shortID(c.RunID)), log.Flags())
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return &ConfigError{Field: "max_concurrency", Reason: fmt.Sprintf("must be positive, got %d", c.MaxConcurrency)}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Reason: fmt.Sprintf("must be positive, got %v", c.Timeout)}
	}
	if c.Grace <= 0 {
		return &ConfigError{Field: "grace", Reason: fmt.Sprintf("must be positive, got %v", c.Grace)}
	}
	if c.PollInterval <= 0 {
		return &ConfigError{Field: "poll_interval", Reason: fmt.Sprintf("must be positive, got %v", c.PollInterval)}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
