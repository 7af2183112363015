// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package main is the entry point for the Driftline server.
//
// Driftline assembles personalized, explainable feed pages from followed
// and discovered posts. The server initializes components in order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML file,
//     environment variables)
//  2. Database: DuckDB holding posts, follows, engagement events,
//     aggregates, impressions, and versioned ranking configs
//  3. Bandit store: BadgerDB-backed exploration counters
//  4. Feed engine: candidate generation, suppression, scoring, Thompson
//     sampling, and mixing
//  5. Background workers: aggregate refresher, impression writer and
//     pruner, bandit flusher, NATS engagement consumer
//  6. HTTP server: feed and config administration endpoints
//
// Everything long-running sits under a suture supervision tree and the
// process drains gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftline/driftline/internal/aggregates"
	"github.com/driftline/driftline/internal/api"
	"github.com/driftline/driftline/internal/bandit"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/database"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/feed"
	"github.com/driftline/driftline/internal/graph"
	"github.com/driftline/driftline/internal/impressions"
	"github.com/driftline/driftline/internal/logging"
	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/supervisor"
)

// Proximity cache sizing: one feed request touches up to a few thousand
// viewer-author pairs; 100k entries covers the working set of a busy node.
const (
	proximityCacheSize = 100_000
	proximityCacheTTL  = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("loading configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().Str("env", cfg.Feed.Env).Msg("starting driftline")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("opening database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("closing database")
		}
	}()

	banditStore, err := bandit.Open(&cfg.Bandit, logger)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Bandit.Path).Msg("opening bandit store")
	}
	defer func() {
		if err := banditStore.Close(); err != nil {
			logger.Error().Err(err).Msg("closing bandit store")
		}
	}()

	proximity := graph.NewStore(db, proximityCacheSize, proximityCacheTTL, logger)
	writer := impressions.NewWriter(db, banditStore, &cfg.Impressions, logger)
	configStore := feed.NewConfigStore(db, logger)

	engine := feed.NewEngine(cfg.Feed.Env, feed.Deps{
		Configs:     configStore,
		Candidates:  feed.NewCandidateGenerator(db, proximity, logger),
		Suppression: feed.NewSuppressionFilter(db, logger),
		Scorer:      feed.NewScorer(proximity, logger),
		Exploration: feed.NewExplorationEngine(banditStore, logger),
		Mixer:       feed.NewMixer(logger),
		Impressions: writer,
		Metrics:     metrics.FeedRecorder{},
	}, logger)

	handler := api.NewHandler(engine, configStore, db, logger)
	server := api.NewServer(api.NewRouter(handler, &cfg.Server), &cfg.Server, logger)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(banditStore)
	tree.AddDataService(aggregates.NewRefresher(db, &cfg.Aggregates, logger))
	tree.AddDataService(writer)
	tree.AddDataService(impressions.NewPruner(db, &cfg.Impressions, logger))
	tree.AddAPIService(server)

	if cfg.NATS.Enabled {
		consumer, err := events.NewConsumer(&cfg.NATS, db, banditStore, logger)
		if err != nil {
			logging.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("connecting event consumer")
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing event consumer")
			}
		}()
		tree.AddMessagingService(consumer)
	} else {
		logger.Warn().Msg("NATS disabled, engagement events will not be consumed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("supervisor exited")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logger.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}
	logger.Info().Msg("driftline stopped")
}
