// Package config loads and persists the application configuration as TOML
// under the user's config directory. A missing or broken file yields the
// defaults; configuration problems are never fatal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the application configuration.
type Config struct {
	SpecLocations []string      `toml:"spec_locations"`
	Extensions    []string      `toml:"extensions"`
	EncodingRule  string        `toml:"encoding_rule"`
	PollInterval  time.Duration `toml:"-"`
	MessagesDB    string        `toml:"messages_db"`
	LogLevel      string        `toml:"log_level"`
}

// fileConfig is the raw TOML shape; durations are strings like "2s".
type fileConfig struct {
	SpecLocations []string `toml:"spec_locations"`
	Extensions    []string `toml:"extensions"`
	EncodingRule  string   `toml:"encoding_rule"`
	PollInterval  string   `toml:"poll_interval"`
	MessagesDB    string   `toml:"messages_db"`
	LogLevel      string   `toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		SpecLocations: []string{"asn_specs"},
		Extensions:    []string{".asn", ".asn1"},
		EncodingRule:  "per",
		PollInterval:  2 * time.Second,
		MessagesDB:    filepath.Join(Dir(), "messages.db"),
		LogLevel:      "info",
	}
}

// Dir returns the configuration directory, honoring XDG conventions.
func Dir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "asnlens")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "asnlens")
}

// DefaultPath is the location Load falls back to.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads path, applying file values over the defaults. A missing file
// returns the defaults with no error; a malformed file returns the defaults
// plus the parse error so the caller can log and continue.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}

	if meta.IsDefined("spec_locations") {
		cfg.SpecLocations = raw.SpecLocations
	}
	if meta.IsDefined("extensions") {
		cfg.Extensions = raw.Extensions
	}
	if meta.IsDefined("encoding_rule") {
		cfg.EncodingRule = strings.ToLower(strings.TrimSpace(raw.EncodingRule))
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return cfg, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("messages_db") {
		cfg.MessagesDB = raw.MessagesDB
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw := fileConfig{
		SpecLocations: cfg.SpecLocations,
		Extensions:    cfg.Extensions,
		EncodingRule:  cfg.EncodingRule,
		PollInterval:  cfg.PollInterval.String(),
		MessagesDB:    cfg.MessagesDB,
		LogLevel:      cfg.LogLevel,
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(raw); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
