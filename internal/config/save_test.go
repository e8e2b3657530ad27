package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 7
	cfg.Timeout = Duration(90 * time.Second)
	cfg.Command = []string{"sh", "-c"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if !strings.Contains(string(data), `"timeout": "1m30s"`) {
		t.Errorf("Expected human-readable duration in file, got:\n%s", data)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Observer = ObserverDebug
	cfg.Grace = Duration(2 * time.Second)
	cfg.MetricsAddr = ":9090"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Observer != ObserverDebug || loaded.Grace != cfg.Grace || loaded.MetricsAddr != ":9090" {
		t.Errorf("Round trip mismatch: %+v", loaded)
	}
}

// TestSaveLeavesNoTempFiles verifies overwriting an existing file leaves only the config behind.
func TestSaveLeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	for i := 1; i <= 2; i++ {
		cfg := DefaultConfig()
		cfg.Retries = i
		if err := Save(cfg, path); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.json" {
		t.Errorf("Expected only config.json, got %v", entries)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Retries != 2 {
		t.Errorf("Expected the second save to win, got retries=%d", loaded.Retries)
	}
}
