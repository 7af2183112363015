// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pools holds the three candidate pools for one request. Pools are disjoint
// by construction: quality excludes posts by followed authors, and the
// unfamiliar-author slice of quality is carved off into explore.
type Pools struct {
	Followee []Candidate
	Quality  []Candidate
	Explore  []Candidate

	// FollowSet is the viewer's follow set, reused by the scorer.
	FollowSet map[string]struct{}

	// ExploreFailed marks that the explore pool source was unreachable this
	// request; the mixer reports the explore quota as unmet.
	ExploreFailed bool
}

// Total returns the number of candidates across all three pools.
func (p *Pools) Total() int {
	return len(p.Followee) + len(p.Quality) + len(p.Explore)
}

// CandidateGenerator produces the three candidate pools. The followee and
// quality fetches run concurrently; the explore pool is derived from the
// quality pool using graph proximity.
type CandidateGenerator struct {
	source    CandidateSource
	proximity ProximityStore
	logger    zerolog.Logger
}

// NewCandidateGenerator creates a candidate generator.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCandidateGenerator(source CandidateSource, proximity ProximityStore, logger zerolog.Logger) *CandidateGenerator {
	return &CandidateGenerator{
		source:    source,
		proximity: proximity,
		logger:    logger.With().Str("component", "candidates").Logger(),
	}
}

// Generate fetches the candidate pools for a viewer. Any pool may be empty
// (new user, sparse graph); that is a valid state, not an error. A failed
// followee or explore fetch degrades to the remaining pools; only total
// unavailability of the quality source propagates an error.
func (g *CandidateGenerator) Generate(ctx context.Context, viewerID string, cfg *Config) (*Pools, error) {
	lookback := time.Duration(cfg.QualityPool.LookbackHours) * time.Hour

	var (
		followSet map[string]struct{}
		followee  []Candidate
		quality   []Candidate
	)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		fs, err := g.source.FollowSet(egCtx, viewerID)
		if err != nil {
			g.logger.Warn().Err(err).Str("viewer_id", viewerID).Msg("follow set fetch failed")
			fs = map[string]struct{}{}
		}
		followSet = fs

		posts, err := g.source.FolloweePosts(egCtx, viewerID, lookback)
		if err != nil {
			g.logger.Warn().Err(err).Str("viewer_id", viewerID).Msg("followee pool fetch failed")
			return nil
		}
		followee = posts
		return nil
	})

	eg.Go(func() error {
		posts, err := g.source.QualityPosts(egCtx, lookback, cfg.QualityPool.Limit)
		if err != nil {
			return err
		}
		quality = posts
		return nil
	})

	if err := eg.Wait(); err != nil {
		// Quality is the backbone pool; without it (and with an empty
		// followee pool) there is nothing to rank.
		if len(followee) == 0 {
			return nil, err
		}
		g.logger.Warn().Err(err).Msg("quality pool fetch failed, degrading to followee pool")
	}

	pools := &Pools{
		FollowSet: followSet,
	}

	for i := range followee {
		followee[i].Pool = PoolFollowee
	}
	pools.Followee = followee

	// Keep quality disjoint from followee, then carve the unfamiliar-author
	// slice off into the explore pool.
	unfollowed := make([]Candidate, 0, len(quality))
	for _, c := range quality {
		if _, followed := followSet[c.AuthorID]; followed {
			continue
		}
		unfollowed = append(unfollowed, c)
	}

	pools.Quality, pools.Explore, pools.ExploreFailed = g.splitExplore(ctx, viewerID, unfollowed, cfg)

	g.logger.Debug().
		Str("viewer_id", viewerID).
		Int("followee", len(pools.Followee)).
		Int("quality", len(pools.Quality)).
		Int("explore", len(pools.Explore)).
		Msg("candidate pools generated")

	return pools, nil
}

// splitExplore partitions unfollowed quality candidates by author
// familiarity: proximity below the configured threshold moves a candidate to
// the explore pool. Proximity store errors degrade to an empty explore pool
// (everything stays quality) and flag the quota as unmet.
func (g *CandidateGenerator) splitExplore(ctx context.Context, viewerID string, unfollowed []Candidate, cfg *Config) (quality, explore []Candidate, failed bool) {
	for _, c := range unfollowed {
		w, err := g.proximity.Weight(ctx, viewerID, c.AuthorID)
		if err != nil {
			g.logger.Warn().Err(err).Str("viewer_id", viewerID).Msg("proximity lookup failed, skipping explore pool")
			for i := range unfollowed {
				unfollowed[i].Pool = PoolQuality
			}
			return unfollowed, nil, true
		}
		if w < cfg.Explore.FamiliarThreshold {
			c.Pool = PoolExplore
			explore = append(explore, c)
		} else {
			c.Pool = PoolQuality
			quality = append(quality, c)
		}
	}
	return quality, explore, false
}
