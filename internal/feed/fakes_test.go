// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"sync"
	"time"
)

// fakeSource is an in-memory CandidateSource for tests.
type fakeSource struct {
	follows  map[string]struct{}
	followee []Candidate
	quality  []Candidate

	followSetErr error
	followeeErr  error
	qualityErr   error
}

func (f *fakeSource) FollowSet(_ context.Context, _ string) (map[string]struct{}, error) {
	if f.followSetErr != nil {
		return nil, f.followSetErr
	}
	if f.follows == nil {
		return map[string]struct{}{}, nil
	}
	return f.follows, nil
}

func (f *fakeSource) FolloweePosts(_ context.Context, _ string, _ time.Duration) ([]Candidate, error) {
	if f.followeeErr != nil {
		return nil, f.followeeErr
	}
	return f.followee, nil
}

func (f *fakeSource) QualityPosts(_ context.Context, _ time.Duration, _ int) ([]Candidate, error) {
	if f.qualityErr != nil {
		return nil, f.qualityErr
	}
	return f.quality, nil
}

// fakeProximity serves fixed viewer-author weights.
type fakeProximity struct {
	weights map[string]float64 // keyed by author id
	err     error
}

func (f *fakeProximity) Weight(_ context.Context, _, authorID string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.weights[authorID], nil
}

// fakeImpressionReader serves a fixed shown set.
type fakeImpressionReader struct {
	shown map[string]struct{}
	err   error
	calls int
}

func (f *fakeImpressionReader) RecentlyShown(_ context.Context, _ string, _ time.Time) (map[string]struct{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.shown, nil
}

// fakeSink collects logged impressions.
type fakeSink struct {
	mu   sync.Mutex
	logs []Impression
}

func (f *fakeSink) Log(imp Impression) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, imp)
}

func (f *fakeSink) all() []Impression {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Impression, len(f.logs))
	copy(out, f.logs)
	return out
}

// fakeBandit serves fixed bandit stats keyed by entity id.
type fakeBandit struct {
	stats map[string]BanditStat
	err   error
}

func (f *fakeBandit) Stat(_ context.Context, _, entityID string) (BanditStat, error) {
	if f.err != nil {
		return BanditStat{}, f.err
	}
	return f.stats[entityID], nil
}

// fakeConfigSource is an in-memory ConfigSource.
type fakeConfigSource struct {
	mu     sync.Mutex
	active map[string]*StoredConfig
	rows   []StoredConfig
	err    error
}

func (f *fakeConfigSource) ActiveConfig(_ context.Context, env string) (*StoredConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sc, ok := f.active[env]
	if !ok {
		return nil, ErrNoActiveConfig
	}
	return sc, nil
}

func (f *fakeConfigSource) InsertConfig(_ context.Context, sc *StoredConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, *sc)
	return nil
}

func (f *fakeConfigSource) ActivateConfig(_ context.Context, env string, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i := range f.rows {
		if f.rows[i].Env == env && f.rows[i].Version == version {
			f.rows[i].IsActive = true
			if f.active == nil {
				f.active = make(map[string]*StoredConfig)
			}
			f.active[env] = &f.rows[i]
			return nil
		}
	}
	return ErrNoActiveConfig
}

func (f *fakeConfigSource) ListConfigs(_ context.Context, env string) ([]StoredConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []StoredConfig
	for _, row := range f.rows {
		if row.Env == env {
			out = append(out, row)
		}
	}
	return out, nil
}

// post builds a candidate with the given engagement counts.
func post(id, author string, createdAt time.Time, counts EngagementCounts) Candidate {
	return Candidate{
		PostID:    id,
		AuthorID:  author,
		CreatedAt: createdAt,
		Counts:    counts,
	}
}
