// Package config loads the formbuilder CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
)

// Config is the root configuration structure.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Preview PreviewConfig `yaml:"preview"`
	Render  RenderConfig  `yaml:"render"`
	Session SessionConfig `yaml:"session"`
}

// StorageConfig selects where forms are persisted.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "fs" or "sqlite"
	Dir    string `yaml:"dir"`    // fs driver
	DSN    string `yaml:"dsn"`    // sqlite driver
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// PreviewConfig configures the terminal fill flow.
type PreviewConfig struct {
	Output      string `yaml:"output"` // "json", "form" or "pretty"
	MaxAttempts int    `yaml:"max_attempts"`
}

// RenderConfig configures the HTML renderer.
type RenderConfig struct {
	Action           string `yaml:"action"`
	Method           string `yaml:"method"`
	TemplatesDir     string `yaml:"templates_dir,omitempty"`
	InlineStylesheet bool   `yaml:"inline_stylesheet"`
	SubmitLabel      string `yaml:"submit_label,omitempty"`
}

// SessionConfig configures the editing session.
type SessionConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// Load reads configuration from a YAML file. ${VAR} references are
// expanded before parsing and FORMBUILDER_* variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applying env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to defaults plus
// environment overrides otherwise. An empty path always falls back.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	cfg := Default()
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies FORMBUILDER_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMBUILDER_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("FORMBUILDER_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("FORMBUILDER_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}

	if v := os.Getenv("FORMBUILDER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FORMBUILDER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("FORMBUILDER_PREVIEW_OUTPUT"); v != "" {
		cfg.Preview.Output = v
	}
	if v := os.Getenv("FORMBUILDER_PREVIEW_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Preview.MaxAttempts = n
		}
	}

	if v := os.Getenv("FORMBUILDER_RENDER_ACTION"); v != "" {
		cfg.Render.Action = v
	}
	if v := os.Getenv("FORMBUILDER_RENDER_TEMPLATES_DIR"); v != "" {
		cfg.Render.TemplatesDir = v
	}
	if v := os.Getenv("FORMBUILDER_RENDER_INLINE_STYLESHEET"); v != "" {
		cfg.Render.InlineStylesheet = parseBool(v)
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFS
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = ".formbuilder"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "formbuilder.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Preview.Output == "" {
		cfg.Preview.Output = "json"
	}
	if cfg.Preview.MaxAttempts == 0 {
		cfg.Preview.MaxAttempts = 3
	}

	if cfg.Render.Method == "" {
		cfg.Render.Method = "post"
	}

	if cfg.Session.QueueSize == 0 {
		cfg.Session.QueueSize = 64
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case DriverFS, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverFS, DriverSQLite, cfg.Storage.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	switch cfg.Preview.Output {
	case "json", "form", "pretty":
	default:
		return fmt.Errorf("preview.output must be json, form or pretty, got %q", cfg.Preview.Output)
	}
	if cfg.Preview.MaxAttempts < 0 {
		return fmt.Errorf("preview.max_attempts must not be negative")
	}
	if cfg.Session.QueueSize < 0 {
		return fmt.Errorf("session.queue_size must not be negative")
	}
	return nil
}
