// Package config loads objcount settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file (if present), then OBJCOUNT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Scan sources understood by the pipeline.
const (
	ScanNormalized = "normalized"
	ScanRaw        = "raw"
)

// Config is the complete runtime configuration.
type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Cache    CacheConfig    `yaml:"cache"`
	Decode   DecodeConfig   `yaml:"decode"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`

	// Timeout bounds a whole count call. Zero disables the deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// DetectorConfig selects the cascade backend and its scan parameters.
type DetectorConfig struct {
	Backend      string  `yaml:"backend"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScanSource   string  `yaml:"scan_source"`
}

// CacheConfig controls the loaded-model cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DecodeConfig controls image decoding.
type DecodeConfig struct {
	// MaxDimension downscales images whose longer side exceeds it. 0 = off.
	MaxDimension int `yaml:"max_dimension"`

	// ForceColor expands grayscale images to BGR before preprocessing.
	ForceColor bool `yaml:"force_color"`
}

// ServerConfig controls the MCP transports.
type ServerConfig struct {
	// Listen is a host:port for the WebSocket transport. Empty = stdio only.
	Listen string `yaml:"listen"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:      "pigo",
			ScaleFactor:  1.1,
			MinNeighbors: 3,
			MinSize:      20,
			MaxSize:      1000,
			ShiftFactor:  0.1,
			ScanSource:   ScanNormalized,
		},
		Cache:  CacheConfig{Enabled: true},
		Decode: DecodeConfig{ForceColor: true},
		Log:    LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory, and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadDotEnv(getEnv("OBJCOUNT_ENV_FILE", ".env")); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(file string) error {
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Detector.Backend = getEnv("OBJCOUNT_BACKEND", c.Detector.Backend)
	c.Detector.ScaleFactor = getEnvAsFloat("OBJCOUNT_SCALE_FACTOR", c.Detector.ScaleFactor)
	c.Detector.MinNeighbors = getEnvAsInt("OBJCOUNT_MIN_NEIGHBORS", c.Detector.MinNeighbors)
	c.Detector.MinSize = getEnvAsInt("OBJCOUNT_MIN_SIZE", c.Detector.MinSize)
	c.Detector.MaxSize = getEnvAsInt("OBJCOUNT_MAX_SIZE", c.Detector.MaxSize)
	c.Detector.ShiftFactor = getEnvAsFloat("OBJCOUNT_SHIFT_FACTOR", c.Detector.ShiftFactor)
	c.Detector.ScanSource = getEnv("OBJCOUNT_SCAN_SOURCE", c.Detector.ScanSource)
	c.Cache.Enabled = getEnvAsBool("OBJCOUNT_CACHE", c.Cache.Enabled)
	c.Decode.MaxDimension = getEnvAsInt("OBJCOUNT_MAX_DIMENSION", c.Decode.MaxDimension)
	c.Decode.ForceColor = getEnvAsBool("OBJCOUNT_FORCE_COLOR", c.Decode.ForceColor)
	c.Server.Listen = getEnv("OBJCOUNT_LISTEN", c.Server.Listen)
	c.Log.Level = getEnv("OBJCOUNT_LOG_LEVEL", c.Log.Level)
	c.Log.Dir = getEnv("OBJCOUNT_LOG_DIR", c.Log.Dir)
	c.Timeout = getEnvAsDuration("OBJCOUNT_TIMEOUT", c.Timeout)
}

// Validate checks values that would make the detector misbehave.
func (c *Config) Validate() error {
	switch c.Detector.ScanSource {
	case ScanNormalized, ScanRaw:
	default:
		return fmt.Errorf("invalid scan_source %q: want %q or %q", c.Detector.ScanSource, ScanNormalized, ScanRaw)
	}
	if c.Detector.Backend == "" {
		return fmt.Errorf("detector backend must not be empty")
	}
	if c.Detector.ScaleFactor <= 1.0 {
		return fmt.Errorf("scale_factor must be > 1.0, got %g", c.Detector.ScaleFactor)
	}
	if c.Detector.MinNeighbors < 0 {
		return fmt.Errorf("min_neighbors must be >= 0, got %d", c.Detector.MinNeighbors)
	}
	if c.Detector.MinSize <= 0 || c.Detector.MaxSize < c.Detector.MinSize {
		return fmt.Errorf("invalid window sizes: min_size=%d max_size=%d", c.Detector.MinSize, c.Detector.MaxSize)
	}
	if c.Detector.ShiftFactor <= 0 || c.Detector.ShiftFactor > 1 {
		return fmt.Errorf("shift_factor must be in (0,1], got %g", c.Detector.ShiftFactor)
	}
	if c.Decode.MaxDimension < 0 {
		return fmt.Errorf("max_dimension must be >= 0, got %d", c.Decode.MaxDimension)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", c.Timeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
