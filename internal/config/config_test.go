package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the .env lookup at a file that does not exist so tests do
// not pick up a developer's local settings.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("OBJCOUNT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Detector.Backend != "pigo" {
		t.Errorf("Backend: got %q, want pigo", cfg.Detector.Backend)
	}
	if cfg.Detector.ScaleFactor != 1.1 {
		t.Errorf("ScaleFactor: got %g, want 1.1", cfg.Detector.ScaleFactor)
	}
	if cfg.Detector.MinNeighbors != 3 {
		t.Errorf("MinNeighbors: got %d, want 3", cfg.Detector.MinNeighbors)
	}
	if cfg.Detector.ScanSource != ScanNormalized {
		t.Errorf("ScanSource: got %q, want %q", cfg.Detector.ScanSource, ScanNormalized)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if !cfg.Decode.ForceColor {
		t.Error("grayscale sources should be expanded to BGR by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Detector.MinSize != 20 {
		t.Errorf("MinSize: got %d, want 20", cfg.Detector.MinSize)
	}
}

func TestLoad_YAML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "objcount.yaml", `
detector:
  backend: pigo
  scale_factor: 1.2
  min_neighbors: 5
  min_size: 30
  max_size: 300
  scan_source: raw
cache:
  enabled: false
decode:
  max_dimension: 640
server:
  listen: "127.0.0.1:9000"
log:
  level: debug
timeout: 2s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Detector.ScaleFactor != 1.2 {
		t.Errorf("ScaleFactor: got %g, want 1.2", cfg.Detector.ScaleFactor)
	}
	if cfg.Detector.MinNeighbors != 5 {
		t.Errorf("MinNeighbors: got %d, want 5", cfg.Detector.MinNeighbors)
	}
	if cfg.Detector.ScanSource != ScanRaw {
		t.Errorf("ScanSource: got %q, want raw", cfg.Detector.ScanSource)
	}
	if cfg.Detector.ShiftFactor != 0.1 {
		t.Errorf("unset ShiftFactor should keep default, got %g", cfg.Detector.ShiftFactor)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled")
	}
	if cfg.Decode.MaxDimension != 640 {
		t.Errorf("MaxDimension: got %d, want 640", cfg.Decode.MaxDimension)
	}
	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen: got %q", cfg.Server.Listen)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout: got %s, want 2s", cfg.Timeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "bad.yaml", "detector: [unterminated")

	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OBJCOUNT_MIN_NEIGHBORS", "7")
	t.Setenv("OBJCOUNT_SCALE_FACTOR", "1.3")
	t.Setenv("OBJCOUNT_CACHE", "false")
	t.Setenv("OBJCOUNT_TIMEOUT", "750ms")
	t.Setenv("OBJCOUNT_MIN_SIZE", "not-a-number")
	t.Setenv("OBJCOUNT_FORCE_COLOR", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Detector.MinNeighbors != 7 {
		t.Errorf("MinNeighbors: got %d, want 7", cfg.Detector.MinNeighbors)
	}
	if cfg.Detector.ScaleFactor != 1.3 {
		t.Errorf("ScaleFactor: got %g, want 1.3", cfg.Detector.ScaleFactor)
	}
	if cfg.Cache.Enabled {
		t.Error("OBJCOUNT_CACHE=false should disable the cache")
	}
	if cfg.Timeout != 750*time.Millisecond {
		t.Errorf("Timeout: got %s", cfg.Timeout)
	}
	if cfg.Detector.MinSize != 20 {
		t.Errorf("unparseable value should keep default, got %d", cfg.Detector.MinSize)
	}
	if cfg.Decode.ForceColor {
		t.Error("OBJCOUNT_FORCE_COLOR=0 should disable colour expansion")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, "test.env", "OBJCOUNT_LISTEN=127.0.0.1:7777\n")
	t.Setenv("OBJCOUNT_ENV_FILE", envFile)
	t.Cleanup(func() { os.Unsetenv("OBJCOUNT_LISTEN") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:7777" {
		t.Errorf("Listen from .env: got %q", cfg.Server.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad scan source", func(c *Config) { c.Detector.ScanSource = "color" }, "scan_source"},
		{"empty backend", func(c *Config) { c.Detector.Backend = "" }, "backend"},
		{"scale factor one", func(c *Config) { c.Detector.ScaleFactor = 1.0 }, "scale_factor"},
		{"negative neighbors", func(c *Config) { c.Detector.MinNeighbors = -1 }, "min_neighbors"},
		{"max below min", func(c *Config) { c.Detector.MaxSize = 10 }, "window sizes"},
		{"zero shift", func(c *Config) { c.Detector.ShiftFactor = 0 }, "shift_factor"},
		{"negative dimension", func(c *Config) { c.Decode.MaxDimension = -5 }, "max_dimension"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}
