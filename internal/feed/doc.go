// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package feed implements the personalized feed ranking pipeline.
//
// A request flows through six stages: the candidate generator builds three
// disjoint pools (followee, quality, explore), the suppression filter drops
// recently shown posts, the scorer computes composite scores, the
// exploration engine samples Thompson priorities for explore candidates, the
// mixer assembles the page under quota and diversity constraints, and the
// impression sink records what was shown.
//
// Every stage degrades independently: a missing config falls back to
// defaults, an unreachable impression store suppresses nothing, and a dead
// bandit store samples from priors. Only total candidate unavailability
// fails a request.
package feed
