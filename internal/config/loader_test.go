package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/taskwatch/internal/runner"
	"github.com/aristath/taskwatch/internal/substrate"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name           string
		globalConfig   string
		projectConfig  string
		expectConc     int
		expectTimeout  time.Duration
		expectObserver string
		expectBreaker  bool
		expectError    bool
	}{
		{
			name:           "No config files - returns defaults",
			expectConc:     4,
			expectTimeout:  30 * time.Second,
			expectObserver: ObserverInteractive,
		},
		{
			name:           "Global only - overrides timeout",
			globalConfig:   `{"timeout": "2m"}`,
			expectConc:     4,
			expectTimeout:  2 * time.Minute,
			expectObserver: ObserverInteractive,
		},
		{
			name:           "Project overrides global - project wins",
			globalConfig:   `{"max_concurrency": 8, "observer": "debug"}`,
			projectConfig:  `{"max_concurrency": 2, "breaker": {"enabled": true}}`,
			expectConc:     2,
			expectTimeout:  30 * time.Second,
			expectObserver: ObserverDebug,
			expectBreaker:  true,
		},
		{
			name:         "Malformed JSON - returns error",
			globalConfig: `{"max_concurrency": `,
			expectError:  true,
		},
		{
			name:          "Invalid duration - returns error",
			projectConfig: `{"timeout": "soon"}`,
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			globalPath := filepath.Join(tmpDir, "global", "config.json")
			projectPath := filepath.Join(tmpDir, "project", "config.json")

			if tt.globalConfig != "" {
				writeFile(t, globalPath, tt.globalConfig)
			}
			if tt.projectConfig != "" {
				writeFile(t, projectPath, tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if cfg.MaxConcurrency != tt.expectConc {
				t.Errorf("Expected max_concurrency %d, got %d", tt.expectConc, cfg.MaxConcurrency)
			}
			if time.Duration(cfg.Timeout) != tt.expectTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.expectTimeout, time.Duration(cfg.Timeout))
			}
			if cfg.Observer != tt.expectObserver {
				t.Errorf("Expected observer %q, got %q", tt.expectObserver, cfg.Observer)
			}
			if cfg.Breaker.Enabled != tt.expectBreaker {
				t.Errorf("Expected breaker enabled=%v", tt.expectBreaker)
			}
			if cfg.Breaker.MaxFailures != 5 {
				t.Errorf("Nested defaults must survive a partial override, got max_failures %d", cfg.Breaker.MaxFailures)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"unknown observer", func(c *Config) { c.Observer = "fancy" }, "observer"},
		{"negative retries", func(c *Config) { c.Retries = -1 }, "retries"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, "max_concurrency"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"zero grace", func(c *Config) { c.Grace = 0 }, "grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}

			var cfgErr *runner.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *runner.ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, cfgErr.Field)
			}
			if !errors.Is(err, runner.ErrInvalidConfig) {
				t.Error("Expected error to wrap runner.ErrInvalidConfig")
			}
		})
	}
}

func TestRunnerConfig(t *testing.T) {
	cfg := DefaultConfig()
	rc := cfg.RunnerConfig()

	if rc.MaxConcurrency != 4 || rc.Timeout != 30*time.Second || rc.Grace != 5*time.Second || rc.PollInterval != time.Second {
		t.Errorf("Unexpected runner config: %+v", rc)
	}
}

func TestSubstrateFactory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Breaker.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := cfg.SubstrateFactory()(ctx)
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*substrate.Breaker); !ok {
		t.Errorf("Expected breaker-wrapped substrate, got %T", s)
	}
}
