// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "zero tau",
			mutate:  func(c *Config) { c.Freshness.TauHours = 0 },
			wantErr: true,
		},
		{
			name:    "negative tau",
			mutate:  func(c *Config) { c.Freshness.TauHours = -1 },
			wantErr: true,
		},
		{
			name:    "positive hide weight",
			mutate:  func(c *Config) { c.Weights.Quality.Hides = 1 },
			wantErr: true,
		},
		{
			name:    "zero default limit",
			mutate:  func(c *Config) { c.Mixing.DefaultLimit = 0 },
			wantErr: true,
		},
		{
			name:    "max limit below default",
			mutate:  func(c *Config) { c.Mixing.MaxLimit = 10 },
			wantErr: true,
		},
		{
			name:    "zero score workers",
			mutate:  func(c *Config) { c.Mixing.ScoreWorkers = 0 },
			wantErr: true,
		},
		{
			name:    "zero catchup window",
			mutate:  func(c *Config) { c.Follow.CatchupEvery = 0 },
			wantErr: true,
		},
		{
			name:    "curiosity ratio above one",
			mutate:  func(c *Config) { c.Explore.CuriosityRatio = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative curiosity ratio",
			mutate:  func(c *Config) { c.Explore.CuriosityRatio = -0.1 },
			wantErr: true,
		},
		{
			name:    "zero alpha prior",
			mutate:  func(c *Config) { c.Explore.Alpha0 = 0 },
			wantErr: true,
		},
		{
			name:    "zero beta prior",
			mutate:  func(c *Config) { c.Explore.Beta0 = 0 },
			wantErr: true,
		},
		{
			name:    "negative novelty bonus",
			mutate:  func(c *Config) { c.Explore.NoveltyBonus = -0.1 },
			wantErr: true,
		},
		{
			name:    "familiar threshold above one",
			mutate:  func(c *Config) { c.Explore.FamiliarThreshold = 2 },
			wantErr: true,
		},
		{
			name:    "zero author repeat window",
			mutate:  func(c *Config) { c.Diversity.AuthorRepeatWindow = 0 },
			wantErr: true,
		},
		{
			name:    "negative dedupe days",
			mutate:  func(c *Config) { c.Suppression.DedupeDays = -1 },
			wantErr: true,
		},
		{
			name:   "zero dedupe days disables suppression",
			mutate: func(c *Config) { c.Suppression.DedupeDays = 0 },
		},
		{
			name:    "zero quality pool limit",
			mutate:  func(c *Config) { c.QualityPool.Limit = 0 },
			wantErr: true,
		},
		{
			name:    "zero lookback hours",
			mutate:  func(c *Config) { c.QualityPool.LookbackHours = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQualitySum(t *testing.T) {
	w := DefaultConfig().Weights.Quality

	tests := []struct {
		name   string
		counts EngagementCounts
		want   float64
	}{
		{
			name: "zero counts",
			want: 0,
		},
		{
			name:   "positive signals",
			counts: EngagementCounts{Likes: 10, Comments: 5, Reposts: 2},
			want:   10*1.0 + 5*2.0 + 2*3.0,
		},
		{
			name:   "net negative is not clamped",
			counts: EngagementCounts{Likes: 1, Blocks: 2},
			want:   1*1.0 + 2*-8.0,
		},
		{
			name: "all counters contribute",
			counts: EngagementCounts{
				Likes: 1, Comments: 1, Reposts: 1, Expands: 1,
				ProfileVisits: 1, FollowAfterViews: 1,
				Hides: 1, Mutes: 1, Blocks: 1,
			},
			want: 1 + 2 + 3 + 0.5 + 1.5 + 4 - 4 - 6 - 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.QualitySum(tt.counts); got != tt.want {
				t.Errorf("QualitySum() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	orig := DefaultConfig()
	clone := orig.Clone()

	clone.Weights.Alpha = 99
	clone.Weights.Quality.Likes = 99

	if orig.Weights.Alpha == 99 || orig.Weights.Quality.Likes == 99 {
		t.Error("mutating clone changed original")
	}
}
