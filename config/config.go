// Package config loads server configuration from a TOML file.
//
// Flags in cmd/server override file values, and every field has a default,
// so a config file is optional.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Engine   EngineConfig   `toml:"engine"`
}

type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	ReadTimeout  duration `toml:"read_timeout"`
	WriteTimeout duration `toml:"write_timeout"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" for ephemeral.
	Path string `toml:"path"`
}

type EngineConfig struct {
	// LockTimeout bounds how long a write waits for the per-account lock.
	LockTimeout duration `toml:"lock_timeout"`
	// MaxRetries bounds internal retries after a lock timeout.
	MaxRetries int `toml:"max_retries"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  duration{15 * time.Second},
			WriteTimeout: duration{15 * time.Second},
		},
		Database: DatabaseConfig{
			Path: "credit.db",
		},
		Engine: EngineConfig{
			LockTimeout: duration{5 * time.Second},
			MaxRetries:  3,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Engine.MaxRetries < 0 {
		return Config{}, fmt.Errorf("invalid max_retries %d", cfg.Engine.MaxRetries)
	}
	return cfg, nil
}

// duration lets TOML carry values like "15s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
