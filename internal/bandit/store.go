// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package bandit maintains per-entity trial and success counters backing
// Thompson-sampled exploration. Counters are held in sharded in-memory maps
// on the hot path and flushed to BadgerDB on an interval, so a crash loses
// at most one flush window of increments. Exploration is statistical; a
// small undercount is acceptable where a per-increment fsync is not.
package bandit

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/metrics"
)

const counterKeyPrefix = "bandit:"

// counters is the persisted form of one entity's stats.
type counters struct {
	Trials    int64 `json:"trials"`
	Successes int64 `json:"successes"`
}

type entry struct {
	counters
	dirty bool
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Store is a write-behind counter store. Reads and increments hit sharded
// in-memory maps; a background flush persists dirty entries to BadgerDB.
type Store struct {
	db     *badger.DB
	shards []*shard

	flushInterval time.Duration
	logger        zerolog.Logger
}

var _ feed.BanditReader = (*Store)(nil)

// Open opens the BadgerDB at the configured path and returns a store over it.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg *config.BanditConfig, logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open bandit store: %w", err)
	}
	return NewStore(db, cfg.Shards, cfg.FlushInterval, logger), nil
}

// NewStore creates a store over an already-open BadgerDB. Tests pass an
// in-memory database.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(db *badger.DB, shards int, flushInterval time.Duration, logger zerolog.Logger) *Store {
	if shards <= 0 {
		shards = 32
	}
	s := &Store{
		db:            db,
		shards:        make([]*shard, shards),
		flushInterval: flushInterval,
		logger:        logger.With().Str("component", "bandit").Logger(),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

// Stat returns the counters for an entity. Unknown entities report zero
// counters, not an error.
func (s *Store) Stat(ctx context.Context, entityType, entityID string) (feed.BanditStat, error) {
	e, err := s.load(entityType, entityID)
	if err != nil {
		return feed.BanditStat{}, err
	}

	sh := s.shardFor(entityType, entityID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return feed.BanditStat{Trials: e.Trials, Successes: e.Successes}, nil
}

// RecordTrial increments the trial counter for an entity. Called once per
// exploration impression.
func (s *Store) RecordTrial(entityType, entityID string) error {
	e, err := s.load(entityType, entityID)
	if err != nil {
		return err
	}

	sh := s.shardFor(entityType, entityID)
	sh.mu.Lock()
	e.Trials++
	e.dirty = true
	sh.mu.Unlock()

	metrics.BanditTrialsRecorded.Inc()
	return nil
}

// RecordSuccess increments the success counter for an entity. Called when an
// explored post earns positive engagement.
func (s *Store) RecordSuccess(entityType, entityID string) error {
	e, err := s.load(entityType, entityID)
	if err != nil {
		return err
	}

	sh := s.shardFor(entityType, entityID)
	sh.mu.Lock()
	e.Successes++
	e.dirty = true
	sh.mu.Unlock()

	metrics.BanditSuccessesRecorded.Inc()
	return nil
}

// load returns the in-memory entry for an entity, reading persisted counters
// on first access so increments resume from the durable values.
func (s *Store) load(entityType, entityID string) (*entry, error) {
	key := counterKey(entityType, entityID)
	sh := s.shardFor(entityType, entityID)

	sh.mu.Lock()
	if e, ok := sh.entries[key]; ok {
		sh.mu.Unlock()
		return e, nil
	}
	sh.mu.Unlock()

	var c counters
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get counters: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if err != nil {
		return nil, err
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	// Another goroutine may have loaded the same key while we read.
	if e, ok := sh.entries[key]; ok {
		return e, nil
	}
	e := &entry{counters: c}
	sh.entries[key] = e
	return e, nil
}

// Flush persists all dirty counters to BadgerDB.
func (s *Store) Flush() error {
	start := time.Now()

	type pending struct {
		key string
		c   counters
	}
	var batch []pending

	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.dirty {
				batch = append(batch, pending{key: key, c: e.counters})
				e.dirty = false
			}
		}
		sh.mu.Unlock()
	}

	if len(batch) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range batch {
		data, err := json.Marshal(p.c)
		if err != nil {
			return fmt.Errorf("marshal counters: %w", err)
		}
		if err := wb.Set([]byte(p.key), data); err != nil {
			return fmt.Errorf("set counters: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush counters: %w", err)
	}

	metrics.BanditFlushDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug().Int("entries", len(batch)).Msg("flushed bandit counters")
	return nil
}

// Serve runs the periodic flush loop until the context is canceled, then
// performs a final flush. It satisfies the supervisor's service interface.
func (s *Store) Serve(ctx context.Context) error {
	interval := s.flushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				s.logger.Error().Err(err).Msg("final bandit flush failed")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Error().Err(err).Msg("bandit flush failed")
			}
		}
	}
}

func (s *Store) String() string { return "bandit-store" }

// Close flushes pending counters and closes the underlying database.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Store) shardFor(entityType, entityID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(entityType))
	h.Write([]byte{0})
	h.Write([]byte(entityID))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

func counterKey(entityType, entityID string) string {
	return counterKeyPrefix + entityType + ":" + entityID
}
