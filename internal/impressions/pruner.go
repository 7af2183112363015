// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package impressions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/config"
)

// PruneStore deletes impressions older than a cutoff.
type PruneStore interface {
	PruneImpressions(ctx context.Context, before time.Time) (int64, error)
}

// Pruner periodically deletes impressions past the retention window. The
// impression table only needs to cover the suppression lookback; everything
// older is analytics residue.
type Pruner struct {
	store     PruneStore
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// NewPruner creates a retention pruner from the impressions configuration.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPruner(store PruneStore, cfg *config.ImpressionsConfig, logger zerolog.Logger) *Pruner {
	return &Pruner{
		store:     store,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  cfg.PruneInterval,
		logger:    logger.With().Str("component", "impression-pruner").Logger(),
	}
}

// Serve prunes on the configured interval until the context is canceled.
func (p *Pruner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) String() string { return "impression-pruner" }

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)
	removed, err := p.store.PruneImpressions(ctx, cutoff)
	if err != nil {
		p.logger.Error().Err(err).Msg("impression prune failed")
		return
	}
	if removed > 0 {
		p.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("pruned impressions")
	}
}
