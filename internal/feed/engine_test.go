// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type engineFixture struct {
	source *fakeSource
	prox   *fakeProximity
	reader *fakeImpressionReader
	sink   *fakeSink
	bandit *fakeBandit
	engine *Engine
}

func newEngineFixture(now time.Time) *engineFixture {
	f := &engineFixture{
		source: &fakeSource{},
		prox:   &fakeProximity{},
		reader: &fakeImpressionReader{},
		sink:   &fakeSink{},
		bandit: &fakeBandit{},
	}

	log := zerolog.Nop()
	exploration := NewExplorationEngine(f.bandit, log)
	exploration.SetSeed(1)

	f.engine = NewEngine("test", Deps{
		Configs:     NewConfigStore(&fakeConfigSource{}, log),
		Candidates:  NewCandidateGenerator(f.source, f.prox, log),
		Suppression: NewSuppressionFilter(f.reader, log),
		Scorer:      NewScorer(f.prox, log),
		Exploration: exploration,
		Mixer:       NewMixer(log),
		Impressions: f.sink,
	}, log)
	f.engine.SetClock(fixedClock(now))

	return f
}

func TestBuildFeedRequiresViewer(t *testing.T) {
	f := newEngineFixture(time.Now())

	_, err := f.engine.BuildFeed(context.Background(), Request{})
	if !errors.Is(err, ErrViewerRequired) {
		t.Errorf("err = %v, want ErrViewerRequired", err)
	}
}

func TestBuildFeedRejectsBadCursor(t *testing.T) {
	f := newEngineFixture(time.Now())

	_, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Cursor: "not-base64!"})
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("err = %v, want ErrInvalidCursor", err)
	}
}

func TestBuildFeedFollowedAuthorOutranksStranger(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	// Two posts with identical engagement and age; one author is followed.
	counts := EngagementCounts{Likes: 10}
	f.source.follows = map[string]struct{}{"friend": {}}
	f.source.followee = []Candidate{post("fp", "friend", now.Add(-time.Hour), counts)}
	f.source.quality = []Candidate{post("sp", "stranger", now.Add(-time.Hour), counts)}
	f.prox.weights = map[string]float64{"stranger": 0.5} // still below follow boost + 0

	resp, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Limit: 10})
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(resp.Items))
	}
	if resp.Items[0].PostID != "fp" {
		t.Errorf("first item = %s, want followed author's post", resp.Items[0].PostID)
	}
	if _, ok := findReason(resp.Items[0].Reasons, SignalFollowBoost); !ok {
		t.Error("followed author's post missing follow_boost reason")
	}
}

func TestBuildFeedNewUserGetsQualityAndExplore(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	// No follows at all; feed must still fill from quality and explore.
	for i := 0; i < 20; i++ {
		f.source.quality = append(f.source.quality,
			post(fmt.Sprintf("q%02d", i), fmt.Sprintf("a%02d", i), now.Add(-time.Hour), EngagementCounts{Likes: int64(20 - i)}))
	}

	resp, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "new-user", Limit: 10})
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}
	if len(resp.Items) != 10 {
		t.Errorf("got %d items, want 10", len(resp.Items))
	}
}

func TestBuildFeedSuppressionAcrossRequests(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	f.source.quality = []Candidate{
		post("q1", "a1", now.Add(-time.Hour), EngagementCounts{Likes: 5}),
		post("q2", "a2", now.Add(-time.Hour), EngagementCounts{Likes: 3}),
	}
	f.prox.weights = map[string]float64{"a1": 0.5, "a2": 0.5}

	first, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Limit: 10})
	if err != nil {
		t.Fatalf("first BuildFeed() error: %v", err)
	}
	if len(first.Items) != 2 {
		t.Fatalf("first page = %d items, want 2", len(first.Items))
	}

	// Simulate the impression pipeline landing q1 in the store.
	f.reader.shown = map[string]struct{}{"q1": {}}

	second, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Limit: 10})
	if err != nil {
		t.Fatalf("second BuildFeed() error: %v", err)
	}
	for _, item := range second.Items {
		if item.PostID == "q1" {
			t.Error("suppressed post q1 reappeared")
		}
	}
	if second.Metadata.Suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", second.Metadata.Suppressed)
	}
}

func TestBuildFeedLogsImpressions(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	f.source.quality = []Candidate{
		post("q1", "a1", now.Add(-time.Hour), EngagementCounts{Likes: 5}),
	}
	f.prox.weights = map[string]float64{"a1": 0.5}

	resp, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", PageID: "page-7"})
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}

	logs := f.sink.all()
	if len(logs) != len(resp.Items) {
		t.Fatalf("logged %d impressions for %d items", len(logs), len(resp.Items))
	}
	imp := logs[0]
	if imp.UserID != "v" || imp.PostID != "q1" || imp.PageID != "page-7" {
		t.Errorf("impression = %+v, want viewer v, post q1, page page-7", imp)
	}
	if !imp.ShownAt.Equal(now) {
		t.Errorf("shown_at = %v, want %v", imp.ShownAt, now)
	}
	if len(imp.Reasons) == 0 {
		t.Error("impression should carry the item's reasons")
	}
}

func TestBuildFeedPagination(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	f.prox.weights = map[string]float64{}
	for i := 0; i < 30; i++ {
		author := fmt.Sprintf("a%02d", i)
		// Familiar authors keep the ordering score-driven across pages.
		f.prox.weights[author] = 0.5
		f.source.quality = append(f.source.quality,
			post(fmt.Sprintf("q%02d", i), author, now.Add(-time.Hour), EngagementCounts{Likes: int64(30 - i)}))
	}

	first, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Limit: 10})
	if err != nil {
		t.Fatalf("first page error: %v", err)
	}
	if len(first.Items) != 10 {
		t.Fatalf("first page = %d items, want 10", len(first.Items))
	}
	if first.NextCursor == "" {
		t.Fatal("first page should carry a next cursor")
	}

	second, err := f.engine.BuildFeed(context.Background(), Request{
		ViewerID: "v", Limit: 10, Cursor: first.NextCursor,
	})
	if err != nil {
		t.Fatalf("second page error: %v", err)
	}

	seen := map[string]struct{}{}
	for _, item := range first.Items {
		seen[item.PostID] = struct{}{}
	}
	for _, item := range second.Items {
		if _, dup := seen[item.PostID]; dup {
			t.Errorf("post %s on both pages", item.PostID)
		}
	}
}

func TestBuildFeedLimitClamped(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	for i := 0; i < 200; i++ {
		f.source.quality = append(f.source.quality,
			post(fmt.Sprintf("q%03d", i), fmt.Sprintf("a%03d", i), now.Add(-time.Hour), EngagementCounts{Likes: 1}))
	}

	resp, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Limit: 500})
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}
	if max := DefaultConfig().Mixing.MaxLimit; len(resp.Items) != max {
		t.Errorf("got %d items, want clamped to %d", len(resp.Items), max)
	}
}

func TestBuildFeedMetadata(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)

	f.source.quality = []Candidate{
		post("q1", "a1", now.Add(-time.Hour), EngagementCounts{Likes: 5}),
	}
	f.prox.weights = map[string]float64{"a1": 0.5}

	resp, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v"})
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}

	md := resp.Metadata
	if md.RequestID == "" || md.PageID == "" {
		t.Error("request and page ids should be generated when absent")
	}
	if md.ViewerID != "v" {
		t.Errorf("viewer id = %s, want v", md.ViewerID)
	}
	if md.ConfigVersion != 0 {
		t.Errorf("config version = %d, want 0 (defaults)", md.ConfigVersion)
	}
	if md.TotalCandidates != 1 {
		t.Errorf("total candidates = %d, want 1", md.TotalCandidates)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	tests := []int{0, 1, 30, 999}
	for _, offset := range tests {
		got, err := decodeCursor(encodeCursor(offset))
		if err != nil {
			t.Fatalf("decodeCursor(encodeCursor(%d)) error: %v", offset, err)
		}
		if got != offset {
			t.Errorf("round trip %d -> %d", offset, got)
		}
	}

	if _, err := decodeCursor(""); err != nil {
		t.Errorf("empty cursor should decode to offset 0, got %v", err)
	}
	for _, bad := range []string{"garbage", "eDoxMA=="} {
		if _, err := decodeCursor(bad); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("decodeCursor(%q) = %v, want ErrInvalidCursor", bad, err)
		}
	}
}

func TestCursorOffsetBounded(t *testing.T) {
	if _, err := decodeCursor(encodeCursor(maxCursorOffset)); err != nil {
		t.Errorf("offset at the ceiling should decode, got %v", err)
	}

	oversized := []int{maxCursorOffset + 1, 9223372036854775800}
	for _, offset := range oversized {
		if _, err := decodeCursor(encodeCursor(offset)); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("decodeCursor(offset %d) = %v, want ErrInvalidCursor", offset, err)
		}
	}
}

func TestBuildFeedRejectsOversizedCursor(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(now)
	f.source.quality = []Candidate{post("p1", "a1", now.Add(-time.Hour), EngagementCounts{Likes: 1})}

	// A cursor near the int ceiling must come back as a client error, not
	// reach page assembly where offset+limit arithmetic would misbehave.
	cursor := encodeCursor(9223372036854775800)
	_, err := f.engine.BuildFeed(context.Background(), Request{ViewerID: "v", Cursor: cursor, Limit: 10})
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("err = %v, want ErrInvalidCursor", err)
	}
}
