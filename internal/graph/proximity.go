// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package graph serves precomputed social-graph proximity weights with an
// in-memory LRU cache in front of the database.
package graph

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/cache"
)

// WeightSource reads precomputed viewer-author weights from storage.
type WeightSource interface {
	ProximityWeight(ctx context.Context, viewerID, authorID string) (float64, error)
}

// Store caches proximity weights. Weights refresh offline on a schedule, so
// a short TTL keeps reads cheap without serving stale data for long. One
// feed request can trigger thousands of lookups, which is why the cache
// fronts every read.
type Store struct {
	source WeightSource
	lru    *cache.LRU[float64]
	logger zerolog.Logger
}

// NewStore creates a proximity store with the given cache capacity and TTL.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(source WeightSource, capacity int, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		source: source,
		lru:    cache.NewLRU[float64](capacity, ttl),
		logger: logger.With().Str("component", "graph").Logger(),
	}
}

// Weight returns the proximity weight between a viewer and an author.
// Unknown pairs report zero; zero weights are cached too, since most pairs
// in a sparse graph are unknown.
func (s *Store) Weight(ctx context.Context, viewerID, authorID string) (float64, error) {
	key := viewerID + "\x00" + authorID

	if w, ok := s.lru.Get(key); ok {
		return w, nil
	}

	w, err := s.source.ProximityWeight(ctx, viewerID, authorID)
	if err != nil {
		return 0, err
	}

	s.lru.Add(key, w)
	return w, nil
}

// Invalidate drops the cached weight for one pair. Called when an offline
// recompute lands for a hot viewer.
func (s *Store) Invalidate(viewerID, authorID string) {
	s.lru.Remove(viewerID + "\x00" + authorID)
}

// CacheStats returns cache hit/miss counters and size.
func (s *Store) CacheStats() (hits, misses int64, size int) {
	return s.lru.Stats()
}
