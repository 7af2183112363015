// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the feed pipeline:
// - Feed request latency, candidate volumes, and exploration quota health
// - Database query performance (DuckDB)
// - Impression write path throughput and backlog
// - Bandit counter updates and engagement event consumption
// - API endpoint latency and throughput

var (
	// Feed Pipeline Metrics
	FeedRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_request_duration_seconds",
			Help:    "End-to-end feed page assembly duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	FeedCandidatesTotal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_candidates_per_request",
			Help:    "Candidate pool size per feed request before suppression",
			Buckets: []float64{10, 50, 100, 500, 1000, 2500, 5000, 10000},
		},
	)

	FeedSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_suppressed_candidates_total",
			Help: "Total candidates removed by impression suppression",
		},
	)

	FeedItemsReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_items_returned_total",
			Help: "Total feed items returned to viewers",
		},
	)

	FeedExploreItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_explore_items_total",
			Help: "Total explore-pool items returned to viewers",
		},
	)

	FeedExploreQuotaMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_explore_quota_misses_total",
			Help: "Feed pages that failed to meet the exploration quota",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Impression Write Path Metrics
	ImpressionsLogged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "impressions_logged_total",
			Help: "Total impressions accepted for asynchronous recording",
		},
	)

	ImpressionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "impressions_dropped_total",
			Help: "Total impressions dropped due to a full buffer",
		},
	)

	ImpressionWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "impression_write_errors_total",
			Help: "Total failed impression batch writes",
		},
	)

	ImpressionQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "impression_queue_depth",
			Help: "Current number of impressions buffered for writing",
		},
	)

	// Bandit Metrics
	BanditTrialsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandit_trials_recorded_total",
			Help: "Total exploration trials recorded",
		},
	)

	BanditSuccessesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandit_successes_recorded_total",
			Help: "Total exploration successes recorded",
		},
	)

	BanditFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandit_flush_duration_seconds",
			Help:    "Duration of bandit counter flushes to disk",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Engagement Event Metrics
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_consumed_total",
			Help: "Total engagement events consumed from the broker",
		},
		[]string{"kind"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_failed_total",
			Help: "Total engagement events that failed processing",
		},
		[]string{"kind"},
	)

	// Aggregate Snapshot Metrics
	AggregateRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_refresh_duration_seconds",
			Help:    "Duration of engagement aggregate recomputation",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	AggregateSnapshotTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregate_snapshot_timestamp",
			Help: "Unix timestamp of the current aggregate snapshot",
		},
	)

	// Config Metrics
	ConfigActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_config_activations_total",
			Help: "Total config version activations",
		},
		[]string{"env"},
	)

	ConfigFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_config_fallbacks_total",
			Help: "Feed requests served with a fallback config",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records one database query with its outcome.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// FeedRecorder feeds per-request engine measurements into Prometheus.
type FeedRecorder struct{}

// ObserveFeedRequest records the outcome of one feed page request.
func (FeedRecorder) ObserveFeedRequest(latency time.Duration, candidates, suppressed, items, exploreItems int, quotaMet bool) {
	FeedRequestDuration.Observe(latency.Seconds())
	FeedCandidatesTotal.Observe(float64(candidates))
	FeedSuppressedTotal.Add(float64(suppressed))
	FeedItemsReturned.Add(float64(items))
	FeedExploreItems.Add(float64(exploreItems))
	if !quotaMet {
		FeedExploreQuotaMisses.Inc()
	}
}
