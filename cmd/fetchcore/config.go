package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the shape of an optional --config TOML file, letting a
// caller pin auth and timeout defaults instead of passing them on every
// invocation.
type fileConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Token          string `toml:"token"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
}

// loadConfig reads cfgFile if set, returning the zero value (no overrides)
// when it is not.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file %q: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return cfg, nil
}

func (c fileConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
