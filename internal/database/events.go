// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/metrics"
)

// InsertEngagementEvent appends one raw engagement event. The event id key
// makes broker redeliveries idempotent; a duplicate insert is a silent
// no-op.
func (db *DB) InsertEngagementEvent(ctx context.Context, eventID, postID, userID, kind string, occurredAt time.Time) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO engagement_events (event_id, post_id, user_id, kind, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, postID, userID, kind, occurredAt)
	metrics.RecordDBQuery("insert", "engagement_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("inserting engagement event: %w", err)
	}
	return nil
}

// RecomputeAggregates rebuilds per-post engagement counters from the raw
// event log for posts created within the lookback window. The whole window
// is replaced in one statement so readers never see a partially updated
// snapshot for a post.
func (db *DB) RecomputeAggregates(ctx context.Context, lookback time.Duration) error {
	since := time.Now().Add(-lookback)

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO post_aggregates (
			post_id, author_id, created_at,
			likes, comments, reposts, expands,
			profile_visits, follow_after_views,
			hides, mutes, blocks, refreshed_at
		)
		SELECT
			p.post_id, p.author_id, p.created_at,
			COUNT(*) FILTER (WHERE e.kind = 'like'),
			COUNT(*) FILTER (WHERE e.kind = 'comment'),
			COUNT(*) FILTER (WHERE e.kind = 'repost'),
			COUNT(*) FILTER (WHERE e.kind = 'expand'),
			COUNT(*) FILTER (WHERE e.kind = 'profile_visit'),
			COUNT(*) FILTER (WHERE e.kind = 'follow_after_view'),
			COUNT(*) FILTER (WHERE e.kind = 'hide'),
			COUNT(*) FILTER (WHERE e.kind = 'mute'),
			COUNT(*) FILTER (WHERE e.kind = 'block'),
			CURRENT_TIMESTAMP
		FROM posts p
		LEFT JOIN engagement_events e ON e.post_id = p.post_id
		WHERE p.created_at >= ?
		GROUP BY p.post_id, p.author_id, p.created_at`,
		since)
	metrics.RecordDBQuery("upsert", "post_aggregates", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("recomputing aggregates: %w", err)
	}
	return nil
}

// AggregateCount returns the number of posts with an aggregate snapshot.
func (db *DB) AggregateCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post_aggregates`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting aggregates: %w", err)
	}
	return count, nil
}
