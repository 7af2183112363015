// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package feed

import (
	"sort"

	"github.com/rs/zerolog"
)

// Mixer assembles the final ranked page from scored candidates. It enforces,
// in priority order: the author diversity window, the followee catch-up
// guarantee, the exploration quota, and score ordering for everything else.
type Mixer struct {
	logger zerolog.Logger
}

// NewMixer creates a mixer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMixer(logger zerolog.Logger) *Mixer {
	return &Mixer{
		logger: logger.With().Str("component", "mixer").Logger(),
	}
}

// MixResult is the assembled page plus quota diagnostics.
type MixResult struct {
	Items []ScoredCandidate

	// ExploreQuotaMet reports whether the page reached its exploration
	// target. False when the explore pool failed or ran dry early.
	ExploreQuotaMet bool
}

// Mix assembles up to count items. Exploit candidates (followee and quality
// pools) are ordered by composite score; explore candidates are ordered by
// their Thompson-sampled priority and interleaved to approximate the
// curiosity ratio using an error-diffusion accumulator, capped within the
// top ten positions. At least one followee post appears in every catch-up
// window provided one exists above the quality floor.
//
//nolint:gocyclo // page assembly enforces several interacting constraints
func (m *Mixer) Mix(scored []ScoredCandidate, count int, cfg *Config, exploreFailed bool) MixResult {
	exploit := make([]ScoredCandidate, 0, len(scored))
	explore := make([]ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.Explore {
			explore = append(explore, sc)
		} else {
			exploit = append(exploit, sc)
		}
	}

	sortByScore(exploit)
	sortByPriority(explore)

	// count is request-derived; never let it size the allocation beyond
	// what the candidate set can fill.
	items := make([]ScoredCandidate, 0, min(max(count, 0), len(scored)))

	// lastSeen maps author id to the position of their most recent placed
	// post, for the diversity window.
	lastSeen := make(map[string]int)
	usedExploit := make([]bool, len(exploit))
	usedExplore := make([]bool, len(explore))

	var (
		acc           float64 // explore quota error-diffusion accumulator
		exploreCount  int
		exploreInTop  int // explore items within the first ten positions
		sinceFollowee int // positions since the last followee post
	)

	eligible := func(author string, pos int) bool {
		last, seen := lastSeen[author]
		return !seen || pos-last >= cfg.Diversity.AuthorRepeatWindow
	}

	// pick returns the index of the first unused, diversity-eligible
	// candidate in a ranked list, or -1.
	pick := func(list []ScoredCandidate, used []bool, pos int, followeeOnly bool) int {
		for i := range list {
			if used[i] {
				continue
			}
			if followeeOnly {
				if list[i].Pool != PoolFollowee || list[i].Score < cfg.Follow.MinQualityFloor {
					continue
				}
			}
			if eligible(list[i].AuthorID, pos) {
				return i
			}
		}
		return -1
	}

	for pos := 0; len(items) < count; pos++ {
		acc += cfg.Explore.CuriosityRatio

		var (
			chosen      ScoredCandidate
			fromExplore bool
			placed      bool
		)

		// Catch-up guarantee first: a window must not close without a
		// followee post.
		if sinceFollowee >= cfg.Follow.CatchupEvery-1 {
			if i := pick(exploit, usedExploit, pos, true); i >= 0 {
				chosen, placed = exploit[i], true
				usedExploit[i] = true
			}
		}

		// Explore slot when the accumulated quota demands one and the
		// top-ten cap allows it. An ineligible slot carries the accumulator
		// forward rather than dropping the debt.
		if !placed && acc >= 1 {
			capped := pos < 10 && exploreInTop >= cfg.Explore.MaxInTop10
			if !capped {
				if i := pick(explore, usedExplore, pos, false); i >= 0 {
					chosen, placed, fromExplore = explore[i], true, true
					usedExplore[i] = true
				}
			}
		}

		if !placed {
			if i := pick(exploit, usedExploit, pos, false); i >= 0 {
				chosen, placed = exploit[i], true
				usedExploit[i] = true
			} else if i := pick(explore, usedExplore, pos, false); i >= 0 {
				// Exploit exhausted; backfill from explore.
				chosen, placed, fromExplore = explore[i], true, true
				usedExplore[i] = true
			}
		}

		if !placed {
			// Every remaining candidate violates the diversity window; a
			// short page beats a repetitive one.
			break
		}

		if fromExplore {
			acc--
			exploreCount++
			if pos < 10 {
				exploreInTop++
			}
		}

		if chosen.Pool == PoolFollowee {
			sinceFollowee = 0
		} else {
			sinceFollowee++
		}

		lastSeen[chosen.AuthorID] = pos
		items = append(items, chosen)
	}

	target := int(cfg.Explore.CuriosityRatio * float64(len(items)))
	quotaMet := !exploreFailed && exploreCount >= target

	m.logger.Debug().
		Int("items", len(items)).
		Int("explore", exploreCount).
		Int("explore_target", target).
		Bool("quota_met", quotaMet).
		Msg("page assembled")

	return MixResult{Items: items, ExploreQuotaMet: quotaMet}
}

// sortByScore orders candidates by score descending, breaking ties by newer
// creation time, then by post id for a total deterministic order.
func sortByScore(list []ScoredCandidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].PostID < list[j].PostID
	})
}

// sortByPriority orders explore candidates by sampled priority descending
// with the same deterministic tie-breaks.
func sortByPriority(list []ScoredCandidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ExplorePriority != list[j].ExplorePriority {
			return list[i].ExplorePriority > list[j].ExplorePriority
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].PostID < list[j].PostID
	})
}
