// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// SuppressionFilter removes candidates the viewer was already shown within
// the configured dedupe window. Impression store reads go through a circuit
// breaker: when the store is unavailable or the breaker is open, the filter
// degrades to "nothing suppressed" so feed availability wins over perfect
// deduplication.
type SuppressionFilter struct {
	impressions ImpressionReader
	breaker     *gobreaker.CircuitBreaker[map[string]struct{}]
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSuppressionFilter creates a suppression filter over the given
// impression reader.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSuppressionFilter(impressions ImpressionReader, logger zerolog.Logger) *SuppressionFilter {
	l := logger.With().Str("component", "suppression").Logger()

	breaker := gobreaker.NewCircuitBreaker[map[string]struct{}](gobreaker.Settings{
		Name:        "impression-reads",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("suppression breaker state change")
		},
	})

	return &SuppressionFilter{
		impressions: impressions,
		breaker:     breaker,
		logger:      l,
		now:         time.Now,
	}
}

// SetClock overrides the filter's clock. Used by tests.
func (f *SuppressionFilter) SetClock(now func() time.Time) {
	f.now = now
}

// Apply removes already-shown posts from the pools in place and returns the
// number of suppressed candidates. A dedupe window of zero disables
// suppression.
func (f *SuppressionFilter) Apply(ctx context.Context, viewerID string, pools *Pools, cfg *Config) int {
	if cfg.Suppression.DedupeDays <= 0 {
		return 0
	}

	since := f.now().AddDate(0, 0, -cfg.Suppression.DedupeDays)

	shown, err := f.breaker.Execute(func() (map[string]struct{}, error) {
		return f.impressions.RecentlyShown(ctx, viewerID, since)
	})
	if err != nil {
		f.logger.Warn().Err(err).
			Str("viewer_id", viewerID).
			Msg("impression lookup failed, suppressing nothing")
		return 0
	}

	if len(shown) == 0 {
		return 0
	}

	suppressed := 0
	pools.Followee, suppressed = filterShown(pools.Followee, shown, suppressed)
	pools.Quality, suppressed = filterShown(pools.Quality, shown, suppressed)
	pools.Explore, suppressed = filterShown(pools.Explore, shown, suppressed)

	return suppressed
}

// filterShown is a set difference preserving candidate order.
func filterShown(candidates []Candidate, shown map[string]struct{}, suppressed int) ([]Candidate, int) {
	kept := candidates[:0]
	for _, c := range candidates {
		if _, seen := shown[c.PostID]; seen {
			suppressed++
			continue
		}
		kept = append(kept, c)
	}
	return kept, suppressed
}
