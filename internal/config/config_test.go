package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kfocus.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  path: "+filepath.Join(dir, "data", "kfocus.bolt")+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.APIPort != 8470 {
		t.Errorf("Server.APIPort = %d, want 8470", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("Storage.Type = %q, want bolt", cfg.Storage.Type)
	}
	if cfg.Tracking.CheckpointTicks != 30 {
		t.Errorf("Tracking.CheckpointTicks = %d, want 30", cfg.Tracking.CheckpointTicks)
	}
	if cfg.Tracking.HistoryRetentionDays != 62 {
		t.Errorf("Tracking.HistoryRetentionDays = %d, want 62", cfg.Tracking.HistoryRetentionDays)
	}
	if cfg.Classifier.CacheSize != 512 {
		t.Errorf("Classifier.CacheSize = %d, want 512", cfg.Classifier.CacheSize)
	}
	if !cfg.Stats.StartInSimulation {
		t.Error("Stats.StartInSimulation = false, want true")
	}
	if cfg.Storage.Redis.DialTimeout != "5s" {
		t.Errorf("Storage.Redis.DialTimeout = %q, want 5s", cfg.Storage.Redis.DialTimeout)
	}

	interval, err := cfg.Tracking.Interval()
	if err != nil {
		t.Fatalf("Interval() error = %v", err)
	}
	if interval != time.Second {
		t.Errorf("Interval() = %v, want 1s", interval)
	}

	// Storage directory is created during validation
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("storage directory not created: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  path: "+filepath.Join(dir, "kfocus.bolt")+"\n")

	t.Setenv("KFOCUS_TRACKING_CHECKPOINT_TICKS", "10")
	t.Setenv("KFOCUS_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tracking.CheckpointTicks != 10 {
		t.Errorf("Tracking.CheckpointTicks = %d, want 10", cfg.Tracking.CheckpointTicks)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	bolt := "storage:\n  path: " + filepath.Join(dir, "kfocus.bolt") + "\n"

	tests := []struct {
		name string
		body string
	}{
		{"bad port", bolt + "server:\n  api_port: 70000\n"},
		{"bad interval", bolt + "tracking:\n  tick_interval: often\n"},
		{"short retention", bolt + "tracking:\n  history_retention_days: 3\n"},
		{"bad timezone", bolt + "tracking:\n  timezone: Mars/Olympus\n"},
		{"unknown storage", "storage:\n  type: sqlite\n"},
		{"zero cache", bolt + "classifier:\n  cache_size: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestTrackingLocation(t *testing.T) {
	loc, err := TrackingConfig{Timezone: "Local"}.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc != time.Local {
		t.Errorf("Location() = %v, want Local", loc)
	}

	loc, err = TrackingConfig{Timezone: "UTC"}.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("Location() = %v, want UTC", loc)
	}
}

func TestDefaultsAndKnownKeys(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.APIPort != 8470 {
		t.Errorf("Server.APIPort = %d, want 8470", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("Storage.Type = %q, want bolt", cfg.Storage.Type)
	}
	if !cfg.Stats.StartInSimulation {
		t.Error("Stats.StartInSimulation = false, want true")
	}

	keys := KnownKeys()
	for _, key := range []string{
		"server.api_port",
		"storage.redis.password",
		"tracking.checkpoint_ticks",
		"classifier.policy_dir",
		"stats.start_in_simulation",
	} {
		if !keys[key] {
			t.Errorf("KnownKeys() missing %q", key)
		}
	}
	if keys["server.dns_port"] {
		t.Error("KnownKeys() contains server.dns_port")
	}
}
