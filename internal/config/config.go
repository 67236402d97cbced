// Package config handles dslxvm.toml embedder configuration: the handful
// of knobs a CLI or test harness wants to set without touching the vm
// package itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is a dslxvm.toml file's parsed contents.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Runtime RuntimeConfig `toml:"runtime"`

	// Dir is the directory the config file was loaded from.
	Dir string `toml:"-"`
}

// LogConfig controls the structured logger the CLI harness builds for its
// own startup message.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// RuntimeConfig controls interpreter-session-wide limits.
type RuntimeConfig struct {
	ChannelCapacityHint int `toml:"channel_capacity_hint"`
}

// Default returns the configuration used when no dslxvm.toml is found.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Runtime: RuntimeConfig{ChannelCapacityHint: 16},
	}
}

// Load parses a dslxvm.toml file from dir, falling back to Default if the
// file does not exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "dslxvm.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.Dir = dir
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return cfg, nil
}
