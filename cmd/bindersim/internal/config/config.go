// Package config loads and saves bindersim's on-disk settings, the same
// TOML-at-a-fixed-home-directory shape the host CLI this tool is modelled
// on uses for its own config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is bindersim's persisted configuration: the default shape of a
// region to simulate, and logging verbosity.
type Config struct {
	PageSize   int    `toml:"page_size,omitempty"`
	RegionSize int    `toml:"region_size,omitempty"`
	LogLevel   string `toml:"log_level,omitempty"`
}

// Default mirrors spec.md §8's worked examples: P = 4096, R = 16384.
func Default() *Config {
	return &Config{PageSize: 4096, RegionSize: 16384, LogLevel: "info"}
}

var homeOverride string

// SetHome allows the --config-dir flag to override the default location.
func SetHome(dir string) { homeOverride = dir }

// Home returns bindersim's config directory: --config-dir, then
// $BINDERSIM_HOME, then ~/.bindersim.
func Home() string {
	if homeOverride != "" {
		return homeOverride
	}
	if v := os.Getenv("BINDERSIM_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".bindersim")
	}
	return filepath.Join(home, ".bindersim")
}

func path() string { return filepath.Join(Home(), "config.toml") }

// Load reads config.toml, returning Default() if it does not exist.
func Load() (*Config, error) {
	data, err := os.ReadFile(path())
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return cfg, nil
}

// Save persists cfg to config.toml, creating the home directory if needed.
func Save(cfg *Config) error {
	if err := os.MkdirAll(Home(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path(), data, 0o644)
}
