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

	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/metrics"
)

const candidateColumns = `
	a.post_id, a.author_id, a.created_at,
	a.likes, a.comments, a.reposts, a.expands,
	a.profile_visits, a.follow_after_views,
	a.hides, a.mutes, a.blocks`

// FollowSet returns the set of author ids the viewer follows.
func (db *DB) FollowSet(ctx context.Context, viewerID string) (map[string]struct{}, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = ?`, viewerID)
	metrics.RecordDBQuery("select", "follows", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying follow set: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var followee string
		if err := rows.Scan(&followee); err != nil {
			return nil, fmt.Errorf("scanning follow row: %w", err)
		}
		set[followee] = struct{}{}
	}
	return set, rows.Err()
}

// FolloweePosts returns posts authored by followed accounts within the
// lookback window, with their aggregate counters.
func (db *DB) FolloweePosts(ctx context.Context, viewerID string, lookback time.Duration) ([]feed.Candidate, error) {
	since := time.Now().Add(-lookback)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM post_aggregates a
		JOIN follows f ON f.followee_id = a.author_id
		JOIN posts p ON p.post_id = a.post_id
		WHERE f.follower_id = ?
		  AND a.created_at >= ?
		  AND NOT p.deleted
		ORDER BY a.created_at DESC`,
		viewerID, since)
	metrics.RecordDBQuery("select", "post_aggregates", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying followee posts: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// QualityPosts returns the globally highest-engagement posts within the
// lookback window. The raw engagement sum is recall ordering only; real
// ranking happens in the scorer.
func (db *DB) QualityPosts(ctx context.Context, lookback time.Duration, limit int) ([]feed.Candidate, error) {
	since := time.Now().Add(-lookback)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM post_aggregates a
		JOIN posts p ON p.post_id = a.post_id
		WHERE a.created_at >= ?
		  AND NOT p.deleted
		ORDER BY (a.likes + a.comments + a.reposts + a.expands
		          + a.profile_visits + a.follow_after_views) DESC,
		         a.created_at DESC
		LIMIT ?`,
		since, limit)
	metrics.RecordDBQuery("select", "post_aggregates", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying quality posts: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]feed.Candidate, error) {
	var out []feed.Candidate
	for rows.Next() {
		var c feed.Candidate
		if err := rows.Scan(
			&c.PostID, &c.AuthorID, &c.CreatedAt,
			&c.Counts.Likes, &c.Counts.Comments, &c.Counts.Reposts, &c.Counts.Expands,
			&c.Counts.ProfileVisits, &c.Counts.FollowAfterViews,
			&c.Counts.Hides, &c.Counts.Mutes, &c.Counts.Blocks,
		); err != nil {
			return nil, fmt.Errorf("scanning candidate row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ProximityWeight returns the precomputed graph weight between a viewer and
// an author. Unknown pairs report zero.
func (db *DB) ProximityWeight(ctx context.Context, viewerID, authorID string) (float64, error) {
	start := time.Now()
	var weight float64
	err := db.conn.QueryRowContext(ctx,
		`SELECT weight FROM graph_proximity WHERE viewer_id = ? AND author_id = ?`,
		viewerID, authorID).Scan(&weight)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", "graph_proximity", time.Since(start), nil)
		return 0, nil
	}
	metrics.RecordDBQuery("select", "graph_proximity", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("querying proximity weight: %w", err)
	}
	return weight, nil
}

// UpsertProximity stores a viewer-author graph weight. Used by the offline
// proximity job and by tests.
func (db *DB) UpsertProximity(ctx context.Context, viewerID, authorID string, weight float64) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO graph_proximity (viewer_id, author_id, weight, computed_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		viewerID, authorID, weight)
	metrics.RecordDBQuery("upsert", "graph_proximity", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upserting proximity: %w", err)
	}
	return nil
}

// InsertPost stores a new post.
func (db *DB) InsertPost(ctx context.Context, postID, authorID string, createdAt time.Time) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO posts (post_id, author_id, created_at)
		VALUES (?, ?, ?)`,
		postID, authorID, createdAt)
	metrics.RecordDBQuery("insert", "posts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// AddFollow records a follow edge.
func (db *DB) AddFollow(ctx context.Context, followerID, followeeID string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO follows (follower_id, followee_id)
		VALUES (?, ?)`,
		followerID, followeeID)
	metrics.RecordDBQuery("insert", "follows", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("adding follow: %w", err)
	}
	return nil
}

// RemoveFollow deletes a follow edge.
func (db *DB) RemoveFollow(ctx context.Context, followerID, followeeID string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID)
	metrics.RecordDBQuery("delete", "follows", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("removing follow: %w", err)
	}
	return nil
}
