// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoActiveConfig is returned by ConfigSource implementations when no
// config row is active for an environment.
var ErrNoActiveConfig = errors.New("no active config for environment")

// StoredConfig is one versioned, environment-scoped config row. Exactly one
// row is active per environment at any time.
type StoredConfig struct {
	Env       string    `json:"env"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	Config    *Config   `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfigSource is the storage contract for versioned configs. The storage
// layer enforces the single-active invariant: Activate flips the active row
// in one transaction so there is never a window with zero or two active
// configs.
type ConfigSource interface {
	// ActiveConfig returns the single active row for env, or
	// ErrNoActiveConfig.
	ActiveConfig(ctx context.Context, env string) (*StoredConfig, error)

	// InsertConfig stores a new inactive config version.
	InsertConfig(ctx context.Context, sc *StoredConfig) error

	// ActivateConfig atomically deactivates all other versions for env and
	// activates the target version.
	ActivateConfig(ctx context.Context, env string, version int) error

	// ListConfigs returns all config versions for env, newest first.
	ListConfigs(ctx context.Context, env string) ([]StoredConfig, error)
}

// ConfigStore loads the active tuning config with graceful degradation:
// storage error or missing active row falls back to the last successfully
// loaded config, then to the built-in defaults. Config unavailability never
// fails a feed request.
type ConfigStore struct {
	source ConfigSource
	logger zerolog.Logger

	mu       sync.RWMutex
	lastGood map[string]*StoredConfig
}

// NewConfigStore creates a config store backed by the given source.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewConfigStore(source ConfigSource, logger zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		source:   source,
		logger:   logger.With().Str("component", "configstore").Logger(),
		lastGood: make(map[string]*StoredConfig),
	}
}

// Load returns the active config for env. It never fails: on storage error
// or missing active row it returns the cached last-known-good config, or the
// built-in defaults (version 0) when no cache exists.
func (s *ConfigStore) Load(ctx context.Context, env string) *StoredConfig {
	sc, err := s.source.ActiveConfig(ctx, env)
	if err == nil {
		if verr := sc.Config.Validate(); verr != nil {
			s.logger.Warn().Err(verr).
				Str("env", env).
				Int("version", sc.Version).
				Msg("active config invalid, using fallback")
			return s.fallback(env)
		}

		s.mu.Lock()
		s.lastGood[env] = sc
		s.mu.Unlock()
		return sc
	}

	if errors.Is(err, ErrNoActiveConfig) {
		s.logger.Warn().Str("env", env).Msg("no active config, using fallback")
	} else {
		s.logger.Warn().Err(err).Str("env", env).Msg("config load failed, using fallback")
	}

	return s.fallback(env)
}

// fallback returns the last-known-good config for env, or built-in defaults.
func (s *ConfigStore) fallback(env string) *StoredConfig {
	s.mu.RLock()
	cached, ok := s.lastGood[env]
	s.mu.RUnlock()

	if ok {
		return cached
	}

	return &StoredConfig{
		Env:     env,
		Version: 0,
		Config:  DefaultConfig(),
	}
}

// Activate validates and atomically activates the given config version for
// env, deactivating all others.
func (s *ConfigStore) Activate(ctx context.Context, env string, version int) error {
	if err := s.source.ActivateConfig(ctx, env, version); err != nil {
		return err
	}

	s.logger.Info().
		Str("env", env).
		Int("version", version).
		Msg("config activated")

	// Refresh the cache so the next request picks up the new version even
	// if the subsequent load fails.
	if sc, err := s.source.ActiveConfig(ctx, env); err == nil {
		s.mu.Lock()
		s.lastGood[env] = sc
		s.mu.Unlock()
	}

	return nil
}

// Insert stores a new inactive config version after validating it.
func (s *ConfigStore) Insert(ctx context.Context, sc *StoredConfig) error {
	if sc.Config == nil {
		return errors.New("config payload required")
	}
	if err := sc.Config.Validate(); err != nil {
		return err
	}
	return s.source.InsertConfig(ctx, sc)
}

// List returns all config versions for env, newest first.
func (s *ConfigStore) List(ctx context.Context, env string) ([]StoredConfig, error) {
	return s.source.ListConfigs(ctx, env)
}
