// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

// Config is the complete engine configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Vault     VaultConfig     `yaml:"vault"`
	Store     StoreConfig     `yaml:"store"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	// Environment: AIMEE_ADDR
	Addr string `yaml:"addr,omitempty"`

	// BaseURL is the externally reachable base URL used when
	// synthesizing webhook addresses for platforms.
	// Environment: AIMEE_BASE_URL
	BaseURL string `yaml:"base_url,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty"`

	// Format is the log format (json, text).
	Format string `yaml:"format,omitempty"`
}

// VaultConfig configures credential encryption.
type VaultConfig struct {
	// Secret is the operator secret the AES key is derived from.
	// Required. Environment: AIMEE_VAULT_SECRET
	Secret string `yaml:"secret,omitempty"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	// Type is the backend type: "memory" or "sqlite".
	Type string `yaml:"type,omitempty"`

	// Path is the SQLite database file. Ignored for memory.
	// Environment: AIMEE_DB_PATH
	Path string `yaml:"path,omitempty"`
}

// AdapterConfig configures outbound platform calls.
type AdapterConfig struct {
	// Timeout bounds every platform request.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RateLimit is the per-platform request rate in requests per second.
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// RateBurst is the per-platform burst allowance.
	RateBurst int `yaml:"rate_burst,omitempty"`
}

// SchedulerConfig configures the schedule runner.
type SchedulerConfig struct {
	// Enabled activates the ticker loop. Default true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// TickInterval is how often due schedules are checked.
	TickInterval time.Duration `yaml:"tick_interval,omitempty"`
}

// Default returns a configuration with sensible defaults.
// The vault secret has no default: it must come from file or environment.
func Default() *Config {
	enabled := true
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			BaseURL:         "http://localhost:8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Type: "sqlite",
			Path: "aimee.db",
		},
		Adapter: AdapterConfig{
			Timeout:   30 * time.Second,
			RateLimit: 5,
			RateBurst: 10,
		},
		Scheduler: SchedulerConfig{
			Enabled:      &enabled,
			TickInterval: 30 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file, applies
// environment overrides, and validates the result. An empty path skips
// the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &errors.ConfigError{Key: "file", Reason: fmt.Sprintf("cannot read %s", path), Cause: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &errors.ConfigError{Key: "file", Reason: fmt.Sprintf("cannot parse %s", path), Cause: err}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays AIMEE_* environment variables onto the config.
// Environment always wins over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("AIMEE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AIMEE_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("AIMEE_VAULT_SECRET"); v != "" {
		c.Vault.Secret = v
	}
	if v := os.Getenv("AIMEE_STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("AIMEE_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("AIMEE_ADAPTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Adapter.Timeout = d
		}
	}
	if v := os.Getenv("AIMEE_SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scheduler.Enabled = &b
		}
	}
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	if c.Vault.Secret == "" {
		return &errors.ConfigError{
			Key:    "vault.secret",
			Reason: "vault secret is required (set AIMEE_VAULT_SECRET or vault.secret)",
		}
	}

	switch c.Store.Type {
	case "memory", "sqlite":
	default:
		return &errors.ConfigError{
			Key:    "store.type",
			Reason: fmt.Sprintf("unknown store type %q (expected memory or sqlite)", c.Store.Type),
		}
	}

	if c.Store.Type == "sqlite" && c.Store.Path == "" {
		return &errors.ConfigError{Key: "store.path", Reason: "sqlite store requires a database path"}
	}

	if c.Adapter.Timeout <= 0 {
		return &errors.ConfigError{Key: "adapter.timeout", Reason: "timeout must be positive"}
	}
	if c.Scheduler.TickInterval <= 0 {
		return &errors.ConfigError{Key: "scheduler.tick_interval", Reason: "tick interval must be positive"}
	}

	return nil
}

// SchedulerEnabled reports whether the schedule runner should start.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}
