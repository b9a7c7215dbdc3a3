// Package config loads the bridge configuration from a YAML file with
// environment variable overrides. Missing file means defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config carries everything main.go needs to wire the bridge.
type Config struct {
	// ListenAddr is the bridge's HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`
	// LogFile is the rotated log file path; empty logs to stderr only.
	LogFile string `yaml:"log_file"`
	// CaptureDir is where browser captures (HAR files) are dropped. The
	// refresh provider re-reads the newest capture from here.
	CaptureDir string `yaml:"capture_dir"`
	// HistoryPath is where redacted session history summaries are written.
	HistoryPath string `yaml:"history_path"`

	CaptureTimeoutSeconds int `yaml:"capture_timeout_seconds"`
	MinRequestIntervalMS  int `yaml:"min_request_interval_ms"`
	ExtractWorkers        int `yaml:"extract_workers"`
}

var log = slog.Default().With("component", "config")

// Default returns the stock configuration.
func Default() Config {
	return Config{
		ListenAddr:            ":8742",
		CaptureDir:            "captures",
		HistoryPath:           "data/session_history.json",
		CaptureTimeoutSeconds: 300,
		MinRequestIntervalMS:  100,
		ExtractWorkers:        2,
	}
}

// Load reads path if it exists, applies env overrides, and validates.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Info("config file not found, using defaults", "path", path)
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.CaptureTimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("capture_timeout_seconds must be positive, got %d", cfg.CaptureTimeoutSeconds)
	}
	if cfg.MinRequestIntervalMS < 0 {
		return Config{}, fmt.Errorf("min_request_interval_ms must not be negative, got %d", cfg.MinRequestIntervalMS)
	}
	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = 1
	}
	return cfg, nil
}

// applyEnv overlays GONGBRIDGE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GONGBRIDGE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("GONGBRIDGE_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("GONGBRIDGE_CAPTURE_DIR"); v != "" {
		cfg.CaptureDir = v
	}
	if v := os.Getenv("GONGBRIDGE_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("GONGBRIDGE_CAPTURE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CaptureTimeoutSeconds = n
		} else {
			log.Warn("ignoring invalid GONGBRIDGE_CAPTURE_TIMEOUT_SECONDS", "value", v)
		}
	}
	if v := os.Getenv("GONGBRIDGE_MIN_REQUEST_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinRequestIntervalMS = n
		} else {
			log.Warn("ignoring invalid GONGBRIDGE_MIN_REQUEST_INTERVAL_MS", "value", v)
		}
	}
}

// CaptureTimeout returns the capture timeout as a duration.
func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutSeconds) * time.Second
}

// MinRequestInterval returns the request spacing as a duration.
func (c Config) MinRequestInterval() time.Duration {
	return time.Duration(c.MinRequestIntervalMS) * time.Millisecond
}
