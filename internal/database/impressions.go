// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package database

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/metrics"
)

// InsertImpressions writes a batch of impressions in one transaction. The
// composite primary key makes retried batches idempotent, so the async
// writer can safely deliver at-least-once.
func (db *DB) InsertImpressions(ctx context.Context, batch []feed.Impression) error {
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := db.insertImpressionsTx(ctx, batch)
	metrics.RecordDBQuery("insert", "impressions", time.Since(start), err)
	return err
}

func (db *DB) insertImpressionsTx(ctx context.Context, batch []feed.Impression) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning impression transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO impressions (user_id, post_id, page_id, shown_at, reasons, explore)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing impression insert: %w", err)
	}
	defer stmt.Close()

	for i := range batch {
		reasons, err := json.Marshal(batch[i].Reasons)
		if err != nil {
			return fmt.Errorf("marshaling impression reasons: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			batch[i].UserID, batch[i].PostID, batch[i].PageID,
			batch[i].ShownAt, string(reasons), batch[i].Explore); err != nil {
			return fmt.Errorf("inserting impression: %w", err)
		}
	}

	return tx.Commit()
}

// RecentlyShown returns the set of post ids shown to the user since the
// given time.
func (db *DB) RecentlyShown(ctx context.Context, userID string, since time.Time) (map[string]struct{}, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT post_id FROM impressions WHERE user_id = ? AND shown_at >= ?`,
		userID, since)
	metrics.RecordDBQuery("select", "impressions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying recent impressions: %w", err)
	}
	defer rows.Close()

	shown := make(map[string]struct{})
	for rows.Next() {
		var postID string
		if err := rows.Scan(&postID); err != nil {
			return nil, fmt.Errorf("scanning impression row: %w", err)
		}
		shown[postID] = struct{}{}
	}
	return shown, rows.Err()
}

// PruneImpressions deletes impressions older than the cutoff and returns
// the number removed.
func (db *DB) PruneImpressions(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM impressions WHERE shown_at < ?`, cutoff)
	metrics.RecordDBQuery("delete", "impressions", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("pruning impressions: %w", err)
	}
	return res.RowsAffected()
}
