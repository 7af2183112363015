// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package events consumes engagement events from NATS JetStream and lands
// them in storage. Events are the raw material for the aggregate snapshot
// and for exploration success counters.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Engagement event kinds. The positive kinds feed the quality sum and
// exploration successes; the negative kinds subtract from quality.
const (
	KindLike            = "like"
	KindComment         = "comment"
	KindRepost          = "repost"
	KindExpand          = "expand"
	KindProfileVisit    = "profile_visit"
	KindFollowAfterView = "follow_after_view"
	KindHide            = "hide"
	KindMute            = "mute"
	KindBlock           = "block"
)

var validKinds = map[string]bool{
	KindLike:            true,
	KindComment:         true,
	KindRepost:          true,
	KindExpand:          true,
	KindProfileVisit:    true,
	KindFollowAfterView: true,
	KindHide:            true,
	KindMute:            true,
	KindBlock:           true,
}

var positiveKinds = map[string]bool{
	KindLike:            true,
	KindComment:         true,
	KindRepost:          true,
	KindExpand:          true,
	KindProfileVisit:    true,
	KindFollowAfterView: true,
}

// EngagementEvent is one user action on a post, as published to the broker.
// EventID is the idempotency key; redelivered events are absorbed by
// storage, so handlers can safely retry.
type EngagementEvent struct {
	EventID    string    `json:"event_id"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`

	// Explore marks engagement with a post that was served from the
	// exploration slot, which credits the bandit success counter.
	Explore bool `json:"explore,omitempty"`
}

// Validate checks required fields and the kind.
func (e *EngagementEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("engagement event missing event_id")
	}
	if e.PostID == "" {
		return fmt.Errorf("engagement event %s missing post_id", e.EventID)
	}
	if e.UserID == "" {
		return fmt.Errorf("engagement event %s missing user_id", e.EventID)
	}
	if !validKinds[e.Kind] {
		return fmt.Errorf("engagement event %s has unknown kind %q", e.EventID, e.Kind)
	}
	return nil
}

// IsPositive reports whether the kind counts as positive engagement.
func (e *EngagementEvent) IsPositive() bool {
	return positiveKinds[e.Kind]
}

// Marshal serializes the event for publishing.
func (e *EngagementEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent parses an event payload.
func UnmarshalEvent(data []byte) (*EngagementEvent, error) {
	var e EngagementEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal engagement event: %w", err)
	}
	return &e, nil
}
