// Package config loads and validates the user-adjustable knobs for the
// condenser: filesystem paths, compression timing windows, redaction,
// storage, and logging.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "config.yaml"

// Config captures the user-adjustable knobs for compression sessions.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Compress CompressConfig `yaml:"compress"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	SessionsDir string `yaml:"sessions_dir"`
}

// CompressConfig holds the compression timing windows and redaction options.
// Thresholds live in configuration rather than constants because observed
// capture deployments disagree on them.
type CompressConfig struct {
	KeyClickMaxMillis       int `yaml:"key_click_max_millis"`
	MouseClickMaxMillis     int `yaml:"mouse_click_max_millis"`
	TypingMaxInterkeyMillis int `yaml:"typing_max_interkey_millis"`
	MouseSequenceMaxMillis  int `yaml:"mouse_sequence_max_millis"`

	SummaryBucketSeconds int `yaml:"summary_bucket_seconds"`

	RedactEmails   bool     `yaml:"redact_emails"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// StorageConfig toggles the SQLite event store.
type StorageConfig struct {
	Enabled   bool `yaml:"enabled"`
	BatchSize int  `yaml:"batch_size"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			SessionsDir: "sessions",
		},
		Compress: CompressConfig{
			KeyClickMaxMillis:       700,
			MouseClickMaxMillis:     700,
			TypingMaxInterkeyMillis: 1000,
			MouseSequenceMaxMillis:  500,
			SummaryBucketSeconds:    60,
			RedactEmails:            true,
			RedactPatterns:          nil,
		},
		Storage: StorageConfig{
			Enabled:   true,
			BatchSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates
// a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg.normalize()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %q: %w", candidate, err)
	}

	if err := parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", candidate, err)
	}

	cfg.normalize()
	cfg.Source = filepath.Clean(candidate)
	return cfg, nil
}

// parse decodes YAML over the supplied defaults, rejecting unknown keys.
func parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.SessionsDir = filepath.Clean(strings.TrimSpace(c.Paths.SessionsDir))
	if c.Paths.SessionsDir == "." || c.Paths.SessionsDir == "" {
		c.Paths.SessionsDir = defaults.Paths.SessionsDir
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	if c.Compress.KeyClickMaxMillis <= 0 {
		c.Compress.KeyClickMaxMillis = defaults.Compress.KeyClickMaxMillis
	}
	if c.Compress.MouseClickMaxMillis <= 0 {
		c.Compress.MouseClickMaxMillis = defaults.Compress.MouseClickMaxMillis
	}
	if c.Compress.TypingMaxInterkeyMillis <= 0 {
		c.Compress.TypingMaxInterkeyMillis = defaults.Compress.TypingMaxInterkeyMillis
	}
	if c.Compress.MouseSequenceMaxMillis <= 0 {
		c.Compress.MouseSequenceMaxMillis = defaults.Compress.MouseSequenceMaxMillis
	}
	if c.Compress.SummaryBucketSeconds <= 0 {
		c.Compress.SummaryBucketSeconds = defaults.Compress.SummaryBucketSeconds
	}
	if c.Storage.BatchSize <= 0 {
		c.Storage.BatchSize = defaults.Storage.BatchSize
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
