/*
Package config loads server configuration from a YAML file.

PURPOSE:
  One file, one struct. Every field has a default that stands up a
  working dev server, so `rota-server` with no arguments just runs.
  Flags in cmd/server override file values for the common knobs.
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Notifier NotifierConfig `yaml:"notifier"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Per-client request rate limiting.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`

	// Read-cache TTL for GET responses, in seconds. Zero disables caching.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	// Path to the SQLite database file. ":memory:" for ephemeral.
	Path string `yaml:"path"`
}

type NotifierConfig struct {
	// WebhookURL receives scheduling events as JSON POSTs. Empty means
	// notifications go to the log only.
	WebhookURL string `yaml:"webhook_url"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:               8080,
			AllowedOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			CacheTTLSeconds:    5,
		},
		Database: DatabaseConfig{Path: "./data/rota.db"},
	}
}

// Load reads the config file at path, layered over defaults. A missing
// file is not an error; an unreadable or malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Server.Port <= 0 {
		return cfg, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return cfg, nil
}
