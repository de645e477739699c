package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Monitor.TransitionWindow != 60 {
		t.Errorf("TransitionWindow = %v, want 60", cfg.Monitor.TransitionWindow)
	}
	if len(cfg.Analysis.Tempo.Bands) != 4 {
		t.Errorf("got %d tempo bands, want 4", len(cfg.Analysis.Tempo.Bands))
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Planner.QuickCutBPMDelta = 12
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Planner.QuickCutBPMDelta != 12 {
		t.Errorf("QuickCutBPMDelta = %v, want 12", loaded.Planner.QuickCutBPMDelta)
	}
	if loaded.Analysis.Tempo.Bands[2].MaxBPM != 140 {
		t.Errorf("band round trip lost: %+v", loaded.Analysis.Tempo.Bands)
	}
}

func TestLoadPartialOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "log_level = \"debug\"\n[monitor]\nlook_ahead = 20.0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Monitor.LookAhead != 20 {
		t.Errorf("LookAhead = %v, want 20", cfg.Monitor.LookAhead)
	}
	if cfg.Monitor.EmergencyRemaining != 8 {
		t.Errorf("EmergencyRemaining = %v, want default 8", cfg.Monitor.EmergencyRemaining)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	if err != nil {
		t.Errorf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg.Analysis.Tempo.DefaultBPM != 120 {
		t.Errorf("DefaultBPM = %v, want 120", cfg.Analysis.Tempo.DefaultBPM)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[planner]\nmin_success_probability = 1.5\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if cfg.Planner.MinSuccessProbability != 0.3 {
		t.Errorf("invalid config should fall back to defaults")
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg Config, err error) {
			if err != nil {
				return
			}
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)

	updated := DefaultConfig()
	updated.Monitor.LookAhead = 24
	if err := SaveConfig(path, updated); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-changes:
			reloaded = cfg.Monitor.LookAhead == 24
		case <-timeout:
			t.Fatal("no reload with LookAhead 24 observed")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
