// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"fmt"
)

// Config contains all tuning parameters for the feed engine. A config is
// versioned and environment-scoped; it is authored by operators, stored as a
// JSON blob, and hot-swapped at runtime without a code deploy. Configs are
// never mutated in place, only superseded.
type Config struct {
	// Freshness controls the exponential age decay.
	Freshness FreshnessConfig `json:"freshness"`

	// Weights defines the composite score formula coefficients.
	Weights WeightsConfig `json:"weights"`

	// Mixing contains page assembly limits.
	Mixing MixingConfig `json:"mixing"`

	// Follow contains followee catch-up parameters.
	Follow FollowConfig `json:"follow"`

	// Explore contains exploration quota and bandit priors.
	Explore ExploreConfig `json:"explore"`

	// Diversity contains author spacing constraints.
	Diversity DiversityConfig `json:"diversity"`

	// Suppression contains the repeat-exclusion window.
	Suppression SuppressionConfig `json:"suppression"`

	// QualityPool bounds the global candidate pool.
	QualityPool QualityPoolConfig `json:"quality_pool"`
}

// FreshnessConfig controls the exponential age decay.
type FreshnessConfig struct {
	// TauHours is the decay time constant: freshness = exp(-ageHours/tau).
	// Default: 24.
	TauHours float64 `json:"tau_hours"`
}

// WeightsConfig defines the composite score formula:
//
//	score = freshness * (alpha*quality + beta*relation + gamma*similarity)
type WeightsConfig struct {
	// Alpha scales the quality signal. Default: 1.0.
	Alpha float64 `json:"alpha"`

	// Beta scales the relation signal. Default: 2.0.
	Beta float64 `json:"beta"`

	// Gamma scales the similarity signal. Similarity is a reserved
	// placeholder that always evaluates to zero today. Default: 1.0.
	Gamma float64 `json:"gamma"`

	// Quality holds the per-counter weights of the quality sum. Negative
	// signals carry negative weights.
	Quality QualityWeights `json:"quality"`

	// FollowBoost is added to the relation signal when the viewer follows
	// the author. Default: 1.0.
	FollowBoost float64 `json:"follow_boost"`
}

// QualityWeights holds per-counter weights for the quality signal.
type QualityWeights struct {
	Likes            float64 `json:"likes"`
	Comments         float64 `json:"comments"`
	Reposts          float64 `json:"reposts"`
	Expands          float64 `json:"expands"`
	ProfileVisits    float64 `json:"profile_visits"`
	FollowAfterViews float64 `json:"follow_after_views"`

	// Negative signals. These must be <= 0; a net-negative quality sum is
	// allowed to drive a candidate's score below zero.
	Hides  float64 `json:"hides"`
	Mutes  float64 `json:"mutes"`
	Blocks float64 `json:"blocks"`
}

// MixingConfig contains page assembly limits.
type MixingConfig struct {
	// DefaultLimit is the page size when the request does not specify one.
	// Default: 30.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the requested page size. Default: 100.
	MaxLimit int `json:"max_limit"`

	// ScoreWorkers bounds the per-candidate scoring worker pool.
	// Default: 8.
	ScoreWorkers int `json:"score_workers"`
}

// FollowConfig contains followee catch-up parameters.
type FollowConfig struct {
	// CatchupEvery guarantees at least one followee post every N positions.
	// Default: 12.
	CatchupEvery int `json:"catchup_every"`

	// MinQualityFloor is the minimum score a followee post must reach to be
	// force-inserted by catch-up. Default: -10.0.
	MinQualityFloor float64 `json:"min_quality_floor"`
}

// ExploreConfig contains exploration quota and bandit priors.
type ExploreConfig struct {
	// CuriosityRatio is the target fraction of returned posts drawn from the
	// explore pool. Default: 0.12.
	CuriosityRatio float64 `json:"curiosity_ratio"`

	// MaxInTop10 caps explore items within the first 10 positions.
	// Default: 3.
	MaxInTop10 int `json:"max_in_top_10"`

	// Alpha0 and Beta0 are the Beta distribution priors for Thompson
	// Sampling. Defaults: 1.0 and 3.0.
	Alpha0 float64 `json:"alpha0"`
	Beta0  float64 `json:"beta0"`

	// NoveltyBonus is added to the sampled value for posts with no bandit
	// history. Default: 0.25.
	NoveltyBonus float64 `json:"novelty_bonus"`

	// FamiliarThreshold is the graph proximity weight at or above which an
	// author counts as familiar and is excluded from the explore pool.
	// Default: 0.1.
	FamiliarThreshold float64 `json:"familiar_threshold"`
}

// DiversityConfig contains author spacing constraints.
type DiversityConfig struct {
	// AuthorRepeatWindow is the minimum spacing between posts by the same
	// author; no two posts from one author appear within this many
	// consecutive positions. Default: 5.
	AuthorRepeatWindow int `json:"author_repeat_window"`
}

// SuppressionConfig contains the repeat-exclusion window.
type SuppressionConfig struct {
	// DedupeDays is the rolling window within which a shown post is not
	// shown again. Default: 7.
	DedupeDays int `json:"dedupe_days"`
}

// QualityPoolConfig bounds the global candidate pool.
type QualityPoolConfig struct {
	// Limit caps the quality pool to bound downstream scoring cost.
	// Default: 5000.
	Limit int `json:"limit"`

	// LookbackHours is the candidate recency window for all pools.
	// Default: 48.
	LookbackHours int `json:"lookback_hours"`
}

// DefaultConfig returns the built-in safe defaults. These are the values the
// engine falls back to when no config row is active and no cached config
// exists.
func DefaultConfig() *Config {
	return &Config{
		Freshness: FreshnessConfig{
			TauHours: 24.0,
		},
		Weights: WeightsConfig{
			Alpha: 1.0,
			Beta:  2.0,
			Gamma: 1.0,
			Quality: QualityWeights{
				Likes:            1.0,
				Comments:         2.0,
				Reposts:          3.0,
				Expands:          0.5,
				ProfileVisits:    1.5,
				FollowAfterViews: 4.0,
				Hides:            -4.0,
				Mutes:            -6.0,
				Blocks:           -8.0,
			},
			FollowBoost: 1.0,
		},
		Mixing: MixingConfig{
			DefaultLimit: 30,
			MaxLimit:     100,
			ScoreWorkers: 8,
		},
		Follow: FollowConfig{
			CatchupEvery:    12,
			MinQualityFloor: -10.0,
		},
		Explore: ExploreConfig{
			CuriosityRatio:    0.12,
			MaxInTop10:        3,
			Alpha0:            1.0,
			Beta0:             3.0,
			NoveltyBonus:      0.25,
			FamiliarThreshold: 0.1,
		},
		Diversity: DiversityConfig{
			AuthorRepeatWindow: 5,
		},
		Suppression: SuppressionConfig{
			DedupeDays: 7,
		},
		QualityPool: QualityPoolConfig{
			Limit:         5000,
			LookbackHours: 48,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Freshness.TauHours <= 0 {
		return fmt.Errorf("freshness.tau_hours must be positive, got %f", c.Freshness.TauHours)
	}

	if c.Weights.Quality.Hides > 0 || c.Weights.Quality.Mutes > 0 || c.Weights.Quality.Blocks > 0 {
		return fmt.Errorf("negative-signal quality weights must be <= 0")
	}

	if c.Mixing.DefaultLimit < 1 {
		return fmt.Errorf("mixing.default_limit must be positive, got %d", c.Mixing.DefaultLimit)
	}
	if c.Mixing.MaxLimit < c.Mixing.DefaultLimit {
		return fmt.Errorf("mixing.max_limit must be >= mixing.default_limit, got %d < %d",
			c.Mixing.MaxLimit, c.Mixing.DefaultLimit)
	}
	if c.Mixing.ScoreWorkers < 1 {
		return fmt.Errorf("mixing.score_workers must be positive, got %d", c.Mixing.ScoreWorkers)
	}

	if c.Follow.CatchupEvery < 1 {
		return fmt.Errorf("follow.catchup_every must be positive, got %d", c.Follow.CatchupEvery)
	}

	if c.Explore.CuriosityRatio < 0 || c.Explore.CuriosityRatio > 1 {
		return fmt.Errorf("explore.curiosity_ratio must be in [0, 1], got %f", c.Explore.CuriosityRatio)
	}
	if c.Explore.MaxInTop10 < 0 {
		return fmt.Errorf("explore.max_in_top_10 must be non-negative, got %d", c.Explore.MaxInTop10)
	}
	if c.Explore.Alpha0 <= 0 || c.Explore.Beta0 <= 0 {
		return fmt.Errorf("explore priors must be positive, got alpha0=%f beta0=%f",
			c.Explore.Alpha0, c.Explore.Beta0)
	}
	if c.Explore.NoveltyBonus < 0 {
		return fmt.Errorf("explore.novelty_bonus must be non-negative, got %f", c.Explore.NoveltyBonus)
	}
	if c.Explore.FamiliarThreshold < 0 || c.Explore.FamiliarThreshold > 1 {
		return fmt.Errorf("explore.familiar_threshold must be in [0, 1], got %f", c.Explore.FamiliarThreshold)
	}

	if c.Diversity.AuthorRepeatWindow < 1 {
		return fmt.Errorf("diversity.author_repeat_window must be positive, got %d", c.Diversity.AuthorRepeatWindow)
	}

	if c.Suppression.DedupeDays < 0 {
		return fmt.Errorf("suppression.dedupe_days must be non-negative, got %d", c.Suppression.DedupeDays)
	}

	if c.QualityPool.Limit < 1 {
		return fmt.Errorf("quality_pool.limit must be positive, got %d", c.QualityPool.Limit)
	}
	if c.QualityPool.LookbackHours < 1 {
		return fmt.Errorf("quality_pool.lookback_hours must be positive, got %d", c.QualityPool.LookbackHours)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	cp := *c
	return &cp
}

// QualitySum computes the signed quality signal for a set of engagement
// counters. Negative signals subtract; the sum may be negative and is never
// clamped.
func (w QualityWeights) QualitySum(counts EngagementCounts) float64 {
	return w.Likes*float64(counts.Likes) +
		w.Comments*float64(counts.Comments) +
		w.Reposts*float64(counts.Reposts) +
		w.Expands*float64(counts.Expands) +
		w.ProfileVisits*float64(counts.ProfileVisits) +
		w.FollowAfterViews*float64(counts.FollowAfterViews) +
		w.Hides*float64(counts.Hides) +
		w.Mutes*float64(counts.Mutes) +
		w.Blocks*float64(counts.Blocks)
}
