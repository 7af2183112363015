// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package config loads and validates application configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables, highest priority last. This is the process
// configuration (ports, paths, broker URLs); ranking parameters live in the
// database and are managed by the feed config store.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server" validate:"required"`
	Database    DatabaseConfig    `koanf:"database" validate:"required"`
	NATS        NATSConfig        `koanf:"nats"`
	Bandit      BanditConfig      `koanf:"bandit"`
	Feed        FeedConfig        `koanf:"feed"`
	Impressions ImpressionsConfig `koanf:"impressions"`
	Aggregates  AggregatesConfig  `koanf:"aggregates"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path                   string `koanf:"path" validate:"required"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = use NumCPU
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	SkipIndexes            bool   `koanf:"skip_indexes"` // fast test setup
}

// NATSConfig holds the engagement event stream settings.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Topic         string        `koanf:"topic"`
	DurableName   string        `koanf:"durable_name"`
	QueueGroup    string        `koanf:"queue_group"`
	Subscribers   int           `koanf:"subscribers" validate:"min=0"`
	AckWaitSec    int           `koanf:"ack_wait_sec" validate:"min=0"`
	RetryCount    int           `koanf:"retry_count" validate:"min=0"`
	RetryInterval time.Duration `koanf:"retry_interval"`
}

// BanditConfig holds the exploration counter store settings.
type BanditConfig struct {
	Path          string        `koanf:"path" validate:"required"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	Shards        int           `koanf:"shards" validate:"min=1"`
}

// FeedConfig holds feed engine process settings.
type FeedConfig struct {
	// Env selects which config environment the engine serves.
	Env string `koanf:"env" validate:"required"`
}

// ImpressionsConfig holds the asynchronous impression writer settings.
type ImpressionsConfig struct {
	BufferSize    int           `koanf:"buffer_size" validate:"min=1"`
	BatchSize     int           `koanf:"batch_size" validate:"min=1"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	RetentionDays int           `koanf:"retention_days" validate:"min=1"`
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// AggregatesConfig holds the engagement aggregate refresh settings.
type AggregatesConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	LookbackHours   int           `koanf:"lookback_hours" validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Default returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:                   "/data/driftline.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
		},
		NATS: NATSConfig{
			Enabled:       true,
			URL:           "nats://127.0.0.1:4222",
			Topic:         "engagement.events",
			DurableName:   "engagement-processor",
			QueueGroup:    "processors",
			Subscribers:   4,
			AckWaitSec:    30,
			RetryCount:    3,
			RetryInterval: 100 * time.Millisecond,
		},
		Bandit: BanditConfig{
			Path:          "/data/bandit",
			FlushInterval: 30 * time.Second,
			Shards:        32,
		},
		Feed: FeedConfig{
			Env: "production",
		},
		Impressions: ImpressionsConfig{
			BufferSize:    8192,
			BatchSize:     500,
			FlushInterval: 2 * time.Second,
			RetentionDays: 90,
			PruneInterval: time.Hour,
		},
		Aggregates: AggregatesConfig{
			RefreshInterval: time.Minute,
			LookbackHours:   72,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Impressions.FlushInterval <= 0 {
		return fmt.Errorf("impressions.flush_interval must be positive")
	}
	if c.Aggregates.RefreshInterval <= 0 {
		return fmt.Errorf("aggregates.refresh_interval must be positive")
	}
	if c.Bandit.FlushInterval <= 0 {
		return fmt.Errorf("bandit.flush_interval must be positive")
	}

	return nil
}
