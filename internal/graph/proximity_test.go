// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeWeightSource struct {
	weights map[string]float64 // keyed by viewer|author
	calls   int
	err     error
}

func (f *fakeWeightSource) ProximityWeight(_ context.Context, viewerID, authorID string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.weights[viewerID+"|"+authorID], nil
}

func TestWeightCachesLookups(t *testing.T) {
	src := &fakeWeightSource{weights: map[string]float64{"v|a": 0.7}}
	s := NewStore(src, 100, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		w, err := s.Weight(ctx, "v", "a")
		if err != nil {
			t.Fatalf("Weight: %v", err)
		}
		if w != 0.7 {
			t.Fatalf("weight = %v, want 0.7", w)
		}
	}

	if src.calls != 1 {
		t.Errorf("source called %d times, want 1 (cached)", src.calls)
	}
}

func TestWeightCachesZero(t *testing.T) {
	src := &fakeWeightSource{}
	s := NewStore(src, 100, time.Minute, zerolog.Nop())
	ctx := context.Background()

	// Unknown pairs are the common case; the zero must be cached too.
	for i := 0; i < 3; i++ {
		if w, err := s.Weight(ctx, "v", "nobody"); err != nil || w != 0 {
			t.Fatalf("Weight = %v, %v; want 0, nil", w, err)
		}
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestWeightSourceErrorPropagates(t *testing.T) {
	src := &fakeWeightSource{err: errors.New("db down")}
	s := NewStore(src, 100, time.Minute, zerolog.Nop())

	if _, err := s.Weight(context.Background(), "v", "a"); err == nil {
		t.Error("source error should propagate")
	}
	// Errors must not be cached.
	src.err = nil
	src.weights = map[string]float64{"v|a": 0.3}
	w, err := s.Weight(context.Background(), "v", "a")
	if err != nil || w != 0.3 {
		t.Errorf("Weight after recovery = %v, %v; want 0.3, nil", w, err)
	}
}

func TestInvalidate(t *testing.T) {
	src := &fakeWeightSource{weights: map[string]float64{"v|a": 0.1}}
	s := NewStore(src, 100, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := s.Weight(ctx, "v", "a"); err != nil {
		t.Fatal(err)
	}
	src.weights["v|a"] = 0.9
	s.Invalidate("v", "a")

	w, err := s.Weight(ctx, "v", "a")
	if err != nil {
		t.Fatal(err)
	}
	if w != 0.9 {
		t.Errorf("weight after invalidate = %v, want fresh 0.9", w)
	}
}
