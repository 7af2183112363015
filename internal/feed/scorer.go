// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scorer computes composite scores for candidates. Scoring is a pure
// function of the candidate snapshot, the viewer's graph state, and the
// config: two calls with identical inputs produce identical scores.
type Scorer struct {
	proximity ProximityStore
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScorer creates a scorer backed by the given proximity store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScorer(proximity ProximityStore, logger zerolog.Logger) *Scorer {
	return &Scorer{
		proximity: proximity,
		logger:    logger.With().Str("component", "scorer").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the scorer's clock. Used by tests.
func (s *Scorer) SetClock(now func() time.Time) {
	s.now = now
}

// Score computes composite scores for all candidates across the pools using
// a bounded worker pool. The follow set comes from the pools so followee
// membership is consistent within one request. Proximity lookup failures for
// individual candidates degrade that candidate's relation signal to the
// follow boost alone.
func (s *Scorer) Score(ctx context.Context, viewerID string, pools *Pools, cfg *Config) ([]ScoredCandidate, error) {
	candidates := make([]Candidate, 0, pools.Total())
	candidates = append(candidates, pools.Followee...)
	candidates = append(candidates, pools.Quality...)
	candidates = append(candidates, pools.Explore...)

	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]ScoredCandidate, len(candidates))
	asOf := s.now()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Mixing.ScoreWorkers)

	for i := range candidates {
		eg.Go(func() error {
			_, followed := pools.FollowSet[candidates[i].AuthorID]

			weight, err := s.proximity.Weight(egCtx, viewerID, candidates[i].AuthorID)
			if err != nil {
				s.logger.Debug().Err(err).
					Str("author_id", candidates[i].AuthorID).
					Msg("proximity lookup failed, using zero weight")
				weight = 0
			}

			scored[i] = s.scoreOne(candidates[i], followed, weight, asOf, cfg)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return scored, nil
}

// scoreOne computes the composite score for a single candidate:
//
//	score = freshness * (alpha*quality + beta*relation + gamma*similarity)
//
// where freshness = exp(-ageHours/tau) with age clamped to zero for posts
// carrying a future timestamp (clock skew), quality is the signed weighted
// engagement sum, relation is the proximity weight plus the follow boost,
// and similarity is a reserved placeholder that evaluates to zero.
func (s *Scorer) scoreOne(c Candidate, followed bool, proximityWeight float64, asOf time.Time, cfg *Config) ScoredCandidate {
	ageHours := asOf.Sub(c.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	freshness := math.Exp(-ageHours / cfg.Freshness.TauHours)

	quality := cfg.Weights.Quality.QualitySum(c.Counts)

	relation := proximityWeight
	if followed {
		relation += cfg.Weights.FollowBoost
	}

	const similarity = 0.0

	score := freshness * (cfg.Weights.Alpha*quality +
		cfg.Weights.Beta*relation +
		cfg.Weights.Gamma*similarity)

	reasons := []Reason{
		{Signal: SignalFreshness, Weight: freshness},
		{Signal: SignalQuality, Weight: freshness * cfg.Weights.Alpha * quality},
		{Signal: SignalRelation, Weight: freshness * cfg.Weights.Beta * relation},
		{Signal: SignalSimilarity, Weight: freshness * cfg.Weights.Gamma * similarity},
	}
	if followed {
		reasons = append(reasons, Reason{
			Signal: SignalFollowBoost,
			Weight: freshness * cfg.Weights.Beta * cfg.Weights.FollowBoost,
		})
	}

	return ScoredCandidate{
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		CreatedAt: c.CreatedAt,
		Score:     score,
		Reasons:   reasons,
		Explore:   c.Pool == PoolExplore,
		Pool:      c.Pool,
	}
}
