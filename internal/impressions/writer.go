// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package impressions records shown-post impressions off the request path.
// A bounded channel decouples feed requests from storage: the writer batches
// queued impressions and flushes them on size or interval, dropping new
// records when the buffer is full rather than blocking a page render.
package impressions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/metrics"
)

// BatchStore persists impression batches. Inserts are idempotent on the
// (user, post, page) key, so a failed batch can be retried whole.
type BatchStore interface {
	InsertImpressions(ctx context.Context, batch []feed.Impression) error
}

// TrialRecorder counts exploration trials. Trials are recorded when an
// explore impression is durably written, not when it is queued, so a dropped
// impression never inflates the denominator.
type TrialRecorder interface {
	RecordTrial(entityType, entityID string) error
}

// Writer is an asynchronous impression sink. Log never blocks; a background
// goroutine drains the queue in batches.
type Writer struct {
	store  BatchStore
	trials TrialRecorder

	queue         chan feed.Impression
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger
}

var _ feed.ImpressionSink = (*Writer)(nil)

// NewWriter creates an impression writer. trials may be nil when no bandit
// store is wired.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWriter(store BatchStore, trials TrialRecorder, cfg *config.ImpressionsConfig, logger zerolog.Logger) *Writer {
	return &Writer{
		store:         store,
		trials:        trials,
		queue:         make(chan feed.Impression, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger.With().Str("component", "impressions").Logger(),
	}
}

// Log queues an impression for recording. When the buffer is full the
// impression is dropped and counted; feed latency is never paid here.
func (w *Writer) Log(imp feed.Impression) {
	select {
	case w.queue <- imp:
		metrics.ImpressionsLogged.Inc()
		metrics.ImpressionQueueDepth.Set(float64(len(w.queue)))
	default:
		metrics.ImpressionsDropped.Inc()
		w.logger.Warn().
			Str("user_id", imp.UserID).
			Str("post_id", imp.PostID).
			Msg("impression buffer full, dropping record")
	}
}

// Serve drains the queue until the context is canceled, then flushes what
// remains. It satisfies the supervisor's service interface.
func (w *Writer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]feed.Impression, 0, w.batchSize)

	for {
		select {
		case imp := <-w.queue:
			batch = append(batch, imp)
			metrics.ImpressionQueueDepth.Set(float64(len(w.queue)))
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			w.drain(batch)
			return ctx.Err()
		}
	}
}

func (w *Writer) String() string { return "impression-writer" }

// drain empties the queue and writes everything pending with a short grace
// window, detached from the canceled serve context.
func (w *Writer) drain(batch []feed.Impression) {
	for {
		select {
		case imp := <-w.queue:
			batch = append(batch, imp)
		default:
			if len(batch) > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				w.flush(ctx, batch)
				cancel()
			}
			metrics.ImpressionQueueDepth.Set(0)
			return
		}
	}
}

// flush writes one batch, retrying once on failure. Inserts are idempotent,
// so the retry cannot double-count.
func (w *Writer) flush(ctx context.Context, batch []feed.Impression) {
	err := w.store.InsertImpressions(ctx, batch)
	if err != nil {
		w.logger.Warn().Err(err).Int("batch", len(batch)).Msg("impression batch write failed, retrying")
		err = w.store.InsertImpressions(ctx, batch)
	}
	if err != nil {
		metrics.ImpressionWriteErrors.Inc()
		w.logger.Error().Err(err).Int("batch", len(batch)).Msg("impression batch lost")
		return
	}

	if w.trials == nil {
		return
	}
	for _, imp := range batch {
		if !imp.Explore {
			continue
		}
		if err := w.trials.RecordTrial(feed.EntityTypePost, imp.PostID); err != nil {
			w.logger.Warn().Err(err).Str("post_id", imp.PostID).Msg("recording exploration trial failed")
		}
	}
}
