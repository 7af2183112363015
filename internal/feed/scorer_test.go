// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func findReason(reasons []Reason, signal string) (Reason, bool) {
	for _, r := range reasons {
		if r.Signal == signal {
			return r, true
		}
	}
	return Reason{}, false
}

func TestScorerFormula(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	// One post, 24 hours old, 10 likes, author followed with proximity 0.5.
	c := post("p1", "a1", now.Add(-24*time.Hour), EngagementCounts{Likes: 10})
	c.Pool = PoolFollowee

	s := NewScorer(&fakeProximity{weights: map[string]float64{"a1": 0.5}}, zerolog.Nop())
	s.SetClock(fixedClock(now))

	pools := &Pools{
		Followee:  []Candidate{c},
		FollowSet: map[string]struct{}{"a1": {}},
	}

	scored, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("got %d scored candidates, want 1", len(scored))
	}

	freshness := math.Exp(-1) // 24h / tau 24h
	quality := 10.0
	relation := 0.5 + 1.0 // proximity + follow boost
	want := freshness * (1.0*quality + 2.0*relation + 1.0*0)

	if diff := math.Abs(scored[0].Score - want); diff > 1e-12 {
		t.Errorf("Score = %v, want %v", scored[0].Score, want)
	}
}

func TestScorerFutureTimestampClampsAge(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	c := post("p1", "a1", now.Add(2*time.Hour), EngagementCounts{Likes: 1})
	s := NewScorer(&fakeProximity{}, zerolog.Nop())
	s.SetClock(fixedClock(now))

	pools := &Pools{Quality: []Candidate{c}, FollowSet: map[string]struct{}{}}
	scored, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	fr, ok := findReason(scored[0].Reasons, SignalFreshness)
	if !ok {
		t.Fatal("missing freshness reason")
	}
	if fr.Weight != 1.0 {
		t.Errorf("freshness for future post = %v, want 1.0 (age clamped)", fr.Weight)
	}
}

func TestScorerReasons(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	followed := post("p1", "a1", now, EngagementCounts{})
	followed.Pool = PoolFollowee
	stranger := post("p2", "a2", now, EngagementCounts{})
	stranger.Pool = PoolQuality

	s := NewScorer(&fakeProximity{}, zerolog.Nop())
	s.SetClock(fixedClock(now))

	pools := &Pools{
		Followee:  []Candidate{followed},
		Quality:   []Candidate{stranger},
		FollowSet: map[string]struct{}{"a1": {}},
	}
	scored, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	byID := map[string]ScoredCandidate{}
	for _, sc := range scored {
		byID[sc.PostID] = sc
	}

	// The four base signals are always present.
	for _, signal := range []string{SignalFreshness, SignalQuality, SignalRelation, SignalSimilarity} {
		if _, ok := findReason(byID["p1"].Reasons, signal); !ok {
			t.Errorf("followed post missing %q reason", signal)
		}
		if _, ok := findReason(byID["p2"].Reasons, signal); !ok {
			t.Errorf("stranger post missing %q reason", signal)
		}
	}

	// The follow boost reason only appears for followed authors.
	boost, ok := findReason(byID["p1"].Reasons, SignalFollowBoost)
	if !ok {
		t.Fatal("followed post missing follow_boost reason")
	}
	if boost.Weight <= 0 {
		t.Errorf("follow_boost weight = %v, want > 0", boost.Weight)
	}
	if _, ok := findReason(byID["p2"].Reasons, SignalFollowBoost); ok {
		t.Error("stranger post should not carry a follow_boost reason")
	}

	// Similarity is a reserved placeholder and contributes zero.
	sim, _ := findReason(byID["p1"].Reasons, SignalSimilarity)
	if sim.Weight != 0 {
		t.Errorf("similarity weight = %v, want 0", sim.Weight)
	}
}

func TestScorerDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	pools := &Pools{
		Quality: []Candidate{
			post("p1", "a1", now.Add(-3*time.Hour), EngagementCounts{Likes: 7, Hides: 1}),
			post("p2", "a2", now.Add(-30*time.Hour), EngagementCounts{Comments: 4}),
		},
		FollowSet: map[string]struct{}{},
	}

	s := NewScorer(&fakeProximity{weights: map[string]float64{"a1": 0.2}}, zerolog.Nop())
	s.SetClock(fixedClock(now))

	first, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	second, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	for i := range first {
		if first[i].Score != second[i].Score {
			t.Errorf("post %s scored differently across identical calls: %v vs %v",
				first[i].PostID, first[i].Score, second[i].Score)
		}
	}
}

func TestScorerNegativeQualityCanGoBelowZero(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	c := post("p1", "a1", now, EngagementCounts{Blocks: 5})
	s := NewScorer(&fakeProximity{}, zerolog.Nop())
	s.SetClock(fixedClock(now))

	pools := &Pools{Quality: []Candidate{c}, FollowSet: map[string]struct{}{}}
	scored, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if scored[0].Score >= 0 {
		t.Errorf("heavily blocked post score = %v, want < 0", scored[0].Score)
	}
}

func TestScorerProximityFailureDegrades(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	c := post("p1", "a1", now, EngagementCounts{Likes: 1})
	s := NewScorer(&fakeProximity{err: context.DeadlineExceeded}, zerolog.Nop())
	s.SetClock(fixedClock(now))

	pools := &Pools{Quality: []Candidate{c}, FollowSet: map[string]struct{}{}}
	scored, err := s.Score(context.Background(), "viewer", pools, cfg)
	if err != nil {
		t.Fatalf("Score() should degrade on proximity failure, got error: %v", err)
	}

	rel, _ := findReason(scored[0].Reasons, SignalRelation)
	if rel.Weight != 0 {
		t.Errorf("relation weight with failed proximity = %v, want 0", rel.Weight)
	}
}
