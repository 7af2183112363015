// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package aggregates keeps the per-post engagement counters that candidate
// recall and scoring read. Counters are recomputed from raw engagement
// events on an interval rather than updated per event, trading a bounded
// staleness window for simple, idempotent refresh logic.
package aggregates

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/metrics"
)

// Store recomputes the aggregate snapshot from raw events.
type Store interface {
	RecomputeAggregates(ctx context.Context, lookback time.Duration) error
}

// Refresher periodically rebuilds post aggregates. One refresh covers the
// whole lookback window, so a missed tick only extends staleness, never
// loses counts.
type Refresher struct {
	store    Store
	interval time.Duration
	lookback time.Duration
	logger   zerolog.Logger
}

// NewRefresher creates an aggregate refresher from configuration.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefresher(store Store, cfg *config.AggregatesConfig, logger zerolog.Logger) *Refresher {
	return &Refresher{
		store:    store,
		interval: cfg.RefreshInterval,
		lookback: time.Duration(cfg.LookbackHours) * time.Hour,
		logger:   logger.With().Str("component", "aggregates").Logger(),
	}
}

// Serve refreshes once immediately, then on the configured interval until
// the context is canceled. The initial refresh means a restarted process
// serves current counters without waiting a full interval.
func (r *Refresher) Serve(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) String() string { return "aggregate-refresher" }

// Refresh recomputes the snapshot once. Exposed for administrative use.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()
	if err := r.store.RecomputeAggregates(ctx, r.lookback); err != nil {
		return err
	}
	metrics.AggregateRefreshDuration.Observe(time.Since(start).Seconds())
	metrics.AggregateSnapshotTimestamp.Set(float64(time.Now().Unix()))
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error().Err(err).Msg("aggregate refresh failed")
		return
	}
	r.logger.Debug().Dur("lookback", r.lookback).Msg("aggregates refreshed")
}
