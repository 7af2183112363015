// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"context"
	"time"
)

// Pool identifies which candidate pool a post was drawn from.
type Pool int

const (
	// PoolFollowee holds recent posts from accounts the viewer follows.
	PoolFollowee Pool = iota
	// PoolQuality holds globally high-engagement posts.
	PoolQuality
	// PoolExplore holds quality posts from authors outside the viewer's graph.
	PoolExplore
)

// String returns a human-readable pool name.
func (p Pool) String() string {
	switch p {
	case PoolFollowee:
		return "followee"
	case PoolQuality:
		return "quality"
	case PoolExplore:
		return "explore"
	default:
		return "unknown"
	}
}

// Signal names recorded in per-candidate reasons.
const (
	SignalFreshness   = "freshness"
	SignalQuality     = "quality"
	SignalRelation    = "relation"
	SignalSimilarity  = "similarity"
	SignalFollowBoost = "follow_boost"
)

// EngagementCounts holds the per-post engagement counters used for scoring.
// Negative-signal counters (hides, mutes, blocks) carry negative weights in
// the quality formula.
type EngagementCounts struct {
	Likes            int64 `json:"likes"`
	Comments         int64 `json:"comments"`
	Reposts          int64 `json:"reposts"`
	Expands          int64 `json:"expands"`
	ProfileVisits    int64 `json:"profile_visits"`
	FollowAfterViews int64 `json:"follow_after_views"`
	Hides            int64 `json:"hides"`
	Mutes            int64 `json:"mutes"`
	Blocks           int64 `json:"blocks"`
}

// PostAggregate is an immutable per-post engagement snapshot. Snapshots are
// recomputed out-of-band on a fixed interval; consumers tolerate staleness up
// to that interval.
type PostAggregate struct {
	PostID    string           `json:"post_id"`
	AuthorID  string           `json:"author_id"`
	Counts    EngagementCounts `json:"counts"`
	CreatedAt time.Time        `json:"created_at"`
}

// Candidate is a post eligible for ranking, with the minimal metadata the
// pipeline needs. The aggregate counts are a snapshot taken at pool-fetch
// time.
type Candidate struct {
	PostID    string
	AuthorID  string
	CreatedAt time.Time
	Counts    EngagementCounts
	Pool      Pool
}

// BanditStat holds per-entity trial and success counters for Thompson
// Sampling. Counters only ever increase.
type BanditStat struct {
	Trials    int64 `json:"trials"`
	Successes int64 `json:"successes"`
}

// Reason records one named signal's contribution to a candidate's score.
// Reasons are structured, not stringly-typed, so clients and analytics can
// consume them without parsing.
type Reason struct {
	Signal string  `json:"signal"`
	Weight float64 `json:"weight"`
}

// ScoredCandidate is a candidate with its composite score, per-signal
// reasons, and exploration state. It exists only for the duration of one
// request.
type ScoredCandidate struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score"`
	Reasons   []Reason  `json:"reasons"`
	Explore   bool      `json:"explore"`

	// ExplorePriority is the Thompson-sampled ranking value for explore
	// candidates. It competes for the explore quota in the mixer and is a
	// separate axis from Score.
	ExplorePriority float64 `json:"-"`

	// Pool records which candidate pool this post came from.
	Pool Pool `json:"-"`
}

// Impression is one append-only record of a post shown to a user. It drives
// suppression on subsequent requests and downstream analytics.
type Impression struct {
	UserID  string    `json:"user_id"`
	PostID  string    `json:"post_id"`
	PageID  string    `json:"page_id"`
	ShownAt time.Time `json:"shown_at"`
	Reasons []Reason  `json:"reasons"`
	Explore bool      `json:"explore"`
}

// Request is one feed page request.
type Request struct {
	// ViewerID is the user the feed is for.
	ViewerID string `json:"viewer_id"`

	// PageID partitions impressions for A/B analysis. Generated when empty.
	PageID string `json:"page_id,omitempty"`

	// Cursor is the opaque pagination cursor from a previous response.
	Cursor string `json:"cursor,omitempty"`

	// Limit is the number of posts to return. Defaults to
	// Config.Mixing.DefaultLimit when zero.
	Limit int `json:"limit,omitempty"`

	// RequestID is a unique identifier for tracing. Generated when empty.
	RequestID string `json:"request_id,omitempty"`
}

// Response is one ranked feed page.
type Response struct {
	Items      []ScoredCandidate `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`

	// Metadata carries timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	RequestID       string `json:"request_id"`
	ViewerID        string `json:"viewer_id"`
	PageID          string `json:"page_id"`
	ConfigVersion   int    `json:"config_version"`
	TotalCandidates int    `json:"total_candidates"`
	Suppressed      int    `json:"suppressed"`
	ExploreQuotaMet bool   `json:"explore_quota_met"`
	LatencyMS       int64  `json:"latency_ms"`
}

// CandidateSource provides the raw data the candidate generator draws from.
// Implemented by the database layer; the interface keeps this package free of
// storage imports.
type CandidateSource interface {
	// FollowSet returns the set of author ids the viewer follows.
	FollowSet(ctx context.Context, viewerID string) (map[string]struct{}, error)

	// FolloweePosts returns posts authored by followed accounts created
	// within the lookback window.
	FolloweePosts(ctx context.Context, viewerID string, lookback time.Duration) ([]Candidate, error)

	// QualityPosts returns globally high-aggregate posts within the lookback
	// window, capped at limit.
	QualityPosts(ctx context.Context, lookback time.Duration, limit int) ([]Candidate, error)
}

// ProximityStore provides the cached social-graph weight between a viewer and
// an author. Weights are in [0,1]; unknown pairs report zero.
type ProximityStore interface {
	Weight(ctx context.Context, viewerID, authorID string) (float64, error)
}

// ImpressionReader looks up recently shown posts for suppression.
type ImpressionReader interface {
	// RecentlyShown returns the set of post ids shown to the user since the
	// given time.
	RecentlyShown(ctx context.Context, userID string, since time.Time) (map[string]struct{}, error)
}

// ImpressionSink accepts impressions for asynchronous, at-least-once
// recording. Log must not block the request path.
type ImpressionSink interface {
	Log(imp Impression)
}

// BanditReader provides trial/success counters for exploration ranking.
type BanditReader interface {
	// Stat returns the counters for an entity, or a zero BanditStat if the
	// entity has no history.
	Stat(ctx context.Context, entityType, entityID string) (BanditStat, error)
}

// EntityTypePost is the bandit entity type for posts. Kept as an explicit
// type prefix so future entity kinds (authors, topics) share the store.
const EntityTypePost = "post"
