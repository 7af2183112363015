// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExplorationEngine ranks explore-pool candidates with Thompson Sampling.
// Each candidate's priority is a draw from Beta(alpha0+successes,
// beta0+trials-successes); never-tried posts additionally receive the
// configured novelty bonus so new content gets a structural leg up.
//
// The sampled priority is a separate ranking axis from the composite score:
// explore candidates compete against each other for the explore quota, not
// against exploit candidates on score.
type ExplorationEngine struct {
	bandit BanditReader
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewExplorationEngine creates an exploration engine over the given bandit
// reader.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewExplorationEngine(bandit BanditReader, logger zerolog.Logger) *ExplorationEngine {
	return &ExplorationEngine{
		bandit: bandit,
		logger: logger.With().Str("component", "explore").Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // ranking jitter, not crypto
	}
}

// SetSeed reseeds the sampler for deterministic draws. Used by tests.
func (e *ExplorationEngine) SetSeed(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // ranking jitter, not crypto
}

// Prioritize assigns a Thompson-sampled ExplorePriority to every explore
// candidate in place. If the bandit store is unavailable the engine degrades
// to prior-only sampling with the novelty bonus for all candidates, keeping
// exploration alive without history.
func (e *ExplorationEngine) Prioritize(ctx context.Context, scored []ScoredCandidate, cfg *Config) {
	banditDown := false

	for i := range scored {
		if !scored[i].Explore {
			continue
		}

		var stat BanditStat
		if !banditDown {
			var err error
			stat, err = e.bandit.Stat(ctx, EntityTypePost, scored[i].PostID)
			if err != nil {
				banditDown = true
				stat = BanditStat{}
				e.logger.Warn().Err(err).Msg("bandit store unavailable, sampling from priors")
			}
		}

		scored[i].ExplorePriority = e.samplePriority(stat, cfg)
	}
}

// samplePriority draws from the posterior Beta distribution and adds the
// novelty bonus for entities with no trials.
func (e *ExplorationEngine) samplePriority(stat BanditStat, cfg *Config) float64 {
	alpha := cfg.Explore.Alpha0 + float64(stat.Successes)
	beta := cfg.Explore.Beta0 + float64(stat.Trials-stat.Successes)

	e.mu.Lock()
	sample := sampleBeta(e.rng, alpha, beta)
	e.mu.Unlock()

	if stat.Trials == 0 {
		sample += cfg.Explore.NoveltyBonus
	}
	return sample
}

// sampleBeta draws from Beta(a, b) via two Gamma draws:
// X ~ Gamma(a), Y ~ Gamma(b), X/(X+Y) ~ Beta(a, b).
func sampleBeta(rng *rand.Rand, a, b float64) float64 {
	x := sampleGamma(rng, a)
	y := sampleGamma(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang squeeze
// method, with the standard shape<1 boost.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v

		u := rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
