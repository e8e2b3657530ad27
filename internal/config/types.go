package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Observer modes selectable in the configuration.
const (
	ObserverInteractive = "interactive"
	ObserverDebug       = "debug"
	ObserverSilent      = "silent"
	ObserverTUI         = "tui"
)

// Duration is a time.Duration that reads and writes Go duration strings ("30s", "2m").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// BreakerConfig configures the dispatch circuit breaker.
type BreakerConfig struct {
	Enabled     bool     `json:"enabled"`
	MaxFailures uint32   `json:"max_failures,omitempty"` // Consecutive failed tasks before opening
	OpenTimeout Duration `json:"open_timeout,omitempty"` // Time spent open before probing again
}

// Config is the top-level configuration.
type Config struct {
	MaxConcurrency int           `json:"max_concurrency"`
	Timeout        Duration      `json:"timeout"`                 // Max silence between heartbeats
	Grace          Duration      `json:"grace"`                   // Time to acknowledge a cooperative cancel
	PollInterval   Duration      `json:"poll_interval"`           // Completion wait per control loop tick
	Observer       string        `json:"observer"`                // "interactive", "debug", "silent" or "tui"
	ClearScreen    bool          `json:"clear_screen"`            // Interactive observer clears before repaint
	MetricsAddr    string        `json:"metrics_addr,omitempty"`  // Serve /metrics on this address
	OTLPEndpoint   string        `json:"otlp_endpoint,omitempty"` // Export task spans over OTLP/HTTP
	Retries        int           `json:"retries"`                 // Fresh runs for failed inputs after the first
	Breaker        BreakerConfig `json:"breaker"`
	Command        []string      `json:"command,omitempty"` // Default command; the input is appended
}
