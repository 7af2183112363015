// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package database

import "fmt"

// createTableStatements defines the full schema. New columns go through
// versioned migrations once real deployments exist; until then this is the
// single source of truth.
var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (follower_id, followee_id)
	)`,

	// Raw engagement events, appended by the event consumer. The event id
	// makes redelivered broker messages idempotent.
	`CREATE TABLE IF NOT EXISTS engagement_events (
		event_id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL
	)`,

	// Per-post engagement counters, recomputed from engagement_events on a
	// fixed interval. Readers tolerate staleness up to that interval.
	`CREATE TABLE IF NOT EXISTS post_aggregates (
		post_id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		likes BIGINT NOT NULL DEFAULT 0,
		comments BIGINT NOT NULL DEFAULT 0,
		reposts BIGINT NOT NULL DEFAULT 0,
		expands BIGINT NOT NULL DEFAULT 0,
		profile_visits BIGINT NOT NULL DEFAULT 0,
		follow_after_views BIGINT NOT NULL DEFAULT 0,
		hides BIGINT NOT NULL DEFAULT 0,
		mutes BIGINT NOT NULL DEFAULT 0,
		blocks BIGINT NOT NULL DEFAULT 0,
		refreshed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	// Precomputed viewer-author graph weights in [0,1], refreshed by an
	// offline job. Missing pairs read as zero.
	`CREATE TABLE IF NOT EXISTS graph_proximity (
		viewer_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		weight DOUBLE NOT NULL,
		computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (viewer_id, author_id)
	)`,

	// Append-only record of shown posts. The composite key makes retried
	// batch writes idempotent.
	`CREATE TABLE IF NOT EXISTS impressions (
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		page_id TEXT NOT NULL,
		shown_at TIMESTAMP NOT NULL,
		reasons TEXT,
		explore BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, post_id, page_id)
	)`,

	// Versioned ranking configs. At most one row per env has is_active.
	`CREATE TABLE IF NOT EXISTS reco_configs (
		env TEXT NOT NULL,
		version INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (env, version)
	)`,
}

var createIndexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_follows_follower ON follows (follower_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_post ON engagement_events (post_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_occurred ON engagement_events (occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_aggregates_created ON post_aggregates (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_impressions_user_shown ON impressions (user_id, shown_at)`,
	`CREATE INDEX IF NOT EXISTS idx_impressions_shown ON impressions (shown_at)`,
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, stmt := range createTableStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	return nil
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, stmt := range createIndexStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}
