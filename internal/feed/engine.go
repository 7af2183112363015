// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Feed request errors mapped to client-facing status codes by the API layer.
var (
	ErrViewerRequired = errors.New("viewer id is required")
	ErrInvalidCursor  = errors.New("invalid pagination cursor")
)

// Recorder receives per-request feed metrics. A nil Recorder disables
// instrumentation.
type Recorder interface {
	ObserveFeedRequest(latency time.Duration, candidates, suppressed, items, exploreItems int, quotaMet bool)
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Configs     *ConfigStore
	Candidates  *CandidateGenerator
	Suppression *SuppressionFilter
	Scorer      *Scorer
	Exploration *ExplorationEngine
	Mixer       *Mixer
	Impressions ImpressionSink
	Metrics     Recorder
}

// Engine runs the full ranking pipeline for one feed page: load config,
// generate pools, suppress repeats, score, sample exploration priorities,
// mix, and record impressions.
type Engine struct {
	env         string
	configs     *ConfigStore
	candidates  *CandidateGenerator
	suppression *SuppressionFilter
	scorer      *Scorer
	exploration *ExplorationEngine
	mixer       *Mixer
	impressions ImpressionSink
	metrics     Recorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEngine creates a feed engine serving the given config environment.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(env string, deps Deps, logger zerolog.Logger) *Engine {
	return &Engine{
		env:         env,
		configs:     deps.Configs,
		candidates:  deps.Candidates,
		suppression: deps.Suppression,
		scorer:      deps.Scorer,
		exploration: deps.Exploration,
		mixer:       deps.Mixer,
		impressions: deps.Impressions,
		metrics:     deps.Metrics,
		logger:      logger.With().Str("component", "engine").Logger(),
		now:         time.Now,
	}
}

// SetClock overrides the engine's clock and propagates it to the stages that
// read wall time. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.scorer.SetClock(now)
	e.suppression.SetClock(now)
}

// BuildFeed assembles one ranked feed page for the request.
//
// Pagination re-ranks per request: exploit ordering is deterministic, but
// exploration slots are re-sampled each time, so cross-page uniqueness is
// best-effort until the asynchronous impressions from earlier pages land
// and suppression takes over.
func (e *Engine) BuildFeed(ctx context.Context, req Request) (*Response, error) {
	start := e.now()

	if req.ViewerID == "" {
		return nil, ErrViewerRequired
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.PageID == "" {
		req.PageID = uuid.NewString()
	}

	offset, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	stored := e.configs.Load(ctx, e.env)
	cfg := stored.Config

	limit := req.Limit
	if limit <= 0 {
		limit = cfg.Mixing.DefaultLimit
	}
	if limit > cfg.Mixing.MaxLimit {
		limit = cfg.Mixing.MaxLimit
	}

	pools, err := e.candidates.Generate(ctx, req.ViewerID, cfg)
	if err != nil {
		return nil, fmt.Errorf("generating candidates: %w", err)
	}
	total := pools.Total()

	suppressed := e.suppression.Apply(ctx, req.ViewerID, pools, cfg)

	scored, err := e.scorer.Score(ctx, req.ViewerID, pools, cfg)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}

	e.exploration.Prioritize(ctx, scored, cfg)

	mixed := e.mixer.Mix(scored, offset+limit, cfg, pools.ExploreFailed)

	var page []ScoredCandidate
	if offset < len(mixed.Items) {
		page = mixed.Items[offset:]
	}

	var nextCursor string
	// A full assembly up to offset+limit means more candidates may remain.
	if len(mixed.Items) == offset+limit {
		nextCursor = encodeCursor(offset + limit)
	}

	shownAt := e.now()
	exploreItems := 0
	for _, item := range page {
		if item.Explore {
			exploreItems++
		}
		if e.impressions != nil {
			e.impressions.Log(Impression{
				UserID:  req.ViewerID,
				PostID:  item.PostID,
				PageID:  req.PageID,
				ShownAt: shownAt,
				Reasons: item.Reasons,
				Explore: item.Explore,
			})
		}
	}

	latency := e.now().Sub(start)
	if e.metrics != nil {
		e.metrics.ObserveFeedRequest(latency, total, suppressed, len(page), exploreItems, mixed.ExploreQuotaMet)
	}

	e.logger.Info().
		Str("request_id", req.RequestID).
		Str("viewer_id", req.ViewerID).
		Int("config_version", stored.Version).
		Int("candidates", total).
		Int("suppressed", suppressed).
		Int("items", len(page)).
		Int("explore_items", exploreItems).
		Dur("latency", latency).
		Msg("feed page built")

	return &Response{
		Items:      page,
		NextCursor: nextCursor,
		Metadata: ResponseMetadata{
			RequestID:       req.RequestID,
			ViewerID:        req.ViewerID,
			PageID:          req.PageID,
			ConfigVersion:   stored.Version,
			TotalCandidates: total,
			Suppressed:      suppressed,
			ExploreQuotaMet: mixed.ExploreQuotaMet,
			LatencyMS:       latency.Milliseconds(),
		},
	}, nil
}

const cursorPrefix = "o:"

// maxCursorOffset bounds client-supplied page offsets. No legitimate client
// paginates thousands of pages deep; anything beyond this is a malformed or
// hostile cursor, and unbounded offsets would otherwise flow into slice
// arithmetic as count = offset + limit.
const maxCursorOffset = 10_000

// encodeCursor packs a page offset into an opaque cursor token.
func encodeCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// decodeCursor unpacks a cursor token. An empty cursor means the first page.
func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}

	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor
	}

	s := string(raw)
	if !strings.HasPrefix(s, cursorPrefix) {
		return 0, ErrInvalidCursor
	}

	offset, err := strconv.Atoi(strings.TrimPrefix(s, cursorPrefix))
	if err != nil || offset < 0 || offset > maxCursorOffset {
		return 0, ErrInvalidCursor
	}
	return offset, nil
}
