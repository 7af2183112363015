// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
)

func TestSampleBetaBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // test determinism

	for i := 0; i < 10000; i++ {
		v := sampleBeta(rng, 1.0, 3.0)
		if v < 0 || v > 1 {
			t.Fatalf("sampleBeta out of [0,1]: %v", v)
		}
	}
}

func TestSampleBetaMeanTracksPosterior(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // test determinism

	// Beta(1, 3) has mean 0.25; Beta(21, 3) has mean 0.875.
	const n = 20000
	var sumLow, sumHigh float64
	for i := 0; i < n; i++ {
		sumLow += sampleBeta(rng, 1, 3)
		sumHigh += sampleBeta(rng, 21, 3)
	}

	meanLow := sumLow / n
	meanHigh := sumHigh / n

	if meanLow < 0.2 || meanLow > 0.3 {
		t.Errorf("Beta(1,3) sample mean = %v, want ~0.25", meanLow)
	}
	if meanHigh < 0.85 || meanHigh > 0.9 {
		t.Errorf("Beta(21,3) sample mean = %v, want ~0.875", meanHigh)
	}
}

func TestPrioritizeNoveltyBonus(t *testing.T) {
	cfg := DefaultConfig()

	e := NewExplorationEngine(&fakeBandit{stats: map[string]BanditStat{
		"seen": {Trials: 50, Successes: 10},
	}}, zerolog.Nop())
	e.SetSeed(7)

	scored := []ScoredCandidate{
		{PostID: "novel", Explore: true, Pool: PoolExplore},
		{PostID: "seen", Explore: true, Pool: PoolExplore},
		{PostID: "exploit", Explore: false, Pool: PoolQuality},
	}

	e.Prioritize(context.Background(), scored, cfg)

	var novel, seen, exploit ScoredCandidate
	for _, sc := range scored {
		switch sc.PostID {
		case "novel":
			novel = sc
		case "seen":
			seen = sc
		case "exploit":
			exploit = sc
		}
	}

	// The bonus shifts the untried post's range to (bonus, 1+bonus]; a
	// history-bearing entity stays within [0,1].
	if novel.ExplorePriority <= cfg.Explore.NoveltyBonus || novel.ExplorePriority > 1+cfg.Explore.NoveltyBonus {
		t.Errorf("novel priority = %v, want within (%v, %v]",
			novel.ExplorePriority, cfg.Explore.NoveltyBonus, 1+cfg.Explore.NoveltyBonus)
	}
	if seen.ExplorePriority < 0 || seen.ExplorePriority > 1 {
		t.Errorf("seen priority = %v, want within [0, 1]", seen.ExplorePriority)
	}
	if exploit.ExplorePriority != 0 {
		t.Errorf("exploit candidate got priority %v, want 0", exploit.ExplorePriority)
	}
}

func TestPrioritizeNoveltyBonusLiftsUntried(t *testing.T) {
	cfg := DefaultConfig()

	// With many draws, untried posts should on average outrank a post with a
	// poor empirical record.
	e := NewExplorationEngine(&fakeBandit{stats: map[string]BanditStat{
		"bad": {Trials: 200, Successes: 2},
	}}, zerolog.Nop())
	e.SetSeed(99)

	var novelSum, badSum float64
	const n = 2000
	for i := 0; i < n; i++ {
		scored := []ScoredCandidate{
			{PostID: "novel", Explore: true},
			{PostID: "bad", Explore: true},
		}
		e.Prioritize(context.Background(), scored, cfg)
		novelSum += scored[0].ExplorePriority
		badSum += scored[1].ExplorePriority
	}

	if novelSum/n <= badSum/n {
		t.Errorf("untried mean priority %v not above poor performer %v",
			novelSum/n, badSum/n)
	}
}

func TestPrioritizeBanditOutageFallsBackToPriors(t *testing.T) {
	cfg := DefaultConfig()

	e := NewExplorationEngine(&fakeBandit{err: errors.New("store down")}, zerolog.Nop())
	e.SetSeed(3)

	scored := []ScoredCandidate{
		{PostID: "p1", Explore: true},
		{PostID: "p2", Explore: true},
	}

	e.Prioritize(context.Background(), scored, cfg)

	for _, sc := range scored {
		if sc.ExplorePriority <= 0 {
			t.Errorf("post %s priority = %v, want > 0 during bandit outage",
				sc.PostID, sc.ExplorePriority)
		}
	}
}

func TestPrioritizeDeterministicWithSeed(t *testing.T) {
	cfg := DefaultConfig()
	bandit := &fakeBandit{stats: map[string]BanditStat{"p1": {Trials: 10, Successes: 5}}}

	run := func() []float64 {
		e := NewExplorationEngine(bandit, zerolog.Nop())
		e.SetSeed(123)
		scored := []ScoredCandidate{
			{PostID: "p1", Explore: true},
			{PostID: "p2", Explore: true},
		}
		e.Prioritize(context.Background(), scored, cfg)
		return []float64{scored[0].ExplorePriority, scored[1].ExplorePriority}
	}

	a, b := run(), run()
	if a[0] != b[0] || a[1] != b[1] {
		t.Errorf("seeded runs differ: %v vs %v", a, b)
	}
}
