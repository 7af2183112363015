// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/metrics"
)

// ActiveConfig returns the single active config row for env, or
// feed.ErrNoActiveConfig.
func (db *DB) ActiveConfig(ctx context.Context, env string) (*feed.StoredConfig, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT env, version, is_active, payload, created_at
		FROM reco_configs
		WHERE env = ? AND is_active`,
		env)

	sc, err := scanStoredConfig(row)
	metrics.RecordDBQuery("select", "reco_configs", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, feed.ErrNoActiveConfig
	}
	if err != nil {
		return nil, fmt.Errorf("querying active config: %w", err)
	}
	return sc, nil
}

// InsertConfig stores a new inactive config version.
func (db *DB) InsertConfig(ctx context.Context, sc *feed.StoredConfig) error {
	payload, err := json.Marshal(sc.Config)
	if err != nil {
		return fmt.Errorf("marshaling config payload: %w", err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO reco_configs (env, version, is_active, payload)
		VALUES (?, ?, FALSE, ?)`,
		sc.Env, sc.Version, string(payload))
	metrics.RecordDBQuery("insert", "reco_configs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("inserting config v%d for %s: %w", sc.Version, sc.Env, err)
	}
	return nil
}

// ActivateConfig atomically deactivates all versions for env and activates
// the target version. The transaction guarantees there is never a window
// with zero or two active configs.
func (db *DB) ActivateConfig(ctx context.Context, env string, version int) error {
	start := time.Now()
	err := db.activateConfigTx(ctx, env, version)
	metrics.RecordDBQuery("update", "reco_configs", time.Since(start), err)
	return err
}

func (db *DB) activateConfigTx(ctx context.Context, env string, version int) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning activation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx,
		`UPDATE reco_configs SET is_active = TRUE WHERE env = ? AND version = ?`,
		env, version)
	if err != nil {
		return fmt.Errorf("activating config v%d: %w", version, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("config v%d for %s: %w", version, env, feed.ErrNoActiveConfig)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reco_configs SET is_active = FALSE WHERE env = ? AND version != ?`,
		env, version); err != nil {
		return fmt.Errorf("deactivating old configs: %w", err)
	}

	return tx.Commit()
}

// ListConfigs returns all config versions for env, newest first.
func (db *DB) ListConfigs(ctx context.Context, env string) ([]feed.StoredConfig, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT env, version, is_active, payload, created_at
		FROM reco_configs
		WHERE env = ?
		ORDER BY version DESC`,
		env)
	metrics.RecordDBQuery("select", "reco_configs", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	defer rows.Close()

	var out []feed.StoredConfig
	for rows.Next() {
		sc, err := scanStoredConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config row: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredConfig(row rowScanner) (*feed.StoredConfig, error) {
	var (
		sc      feed.StoredConfig
		payload string
	)
	if err := row.Scan(&sc.Env, &sc.Version, &sc.IsActive, &payload, &sc.CreatedAt); err != nil {
		return nil, err
	}

	cfg := &feed.Config{}
	if err := json.Unmarshal([]byte(payload), cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config payload: %w", err)
	}
	sc.Config = cfg
	return &sc, nil
}
