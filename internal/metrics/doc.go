// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

/*
Package metrics provides Prometheus metrics collection for observability.

The package instruments the feed pipeline (request latency, candidate
volumes, suppression and exploration quota health), the DuckDB query layer,
the asynchronous impression write path, bandit counter updates, engagement
event consumption, and the API surface.

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

All collectors register through promauto at package load; components record
through the exported collectors or the helper functions in this package.
*/
package metrics
