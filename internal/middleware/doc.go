// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package middleware provides the HTTP middleware shared by the status surface.

Key Components:

  - Request ID: UUID-based request tracking, mirrored into the logging
    correlation ID so every log line of a request can be grouped
  - Prometheus Metrics: request count and latency per route pattern

Both are plain func(http.Handler) http.Handler values and plug into a chi
router with r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Metrics are labelled with the chi route pattern (for example "/v1/status")
rather than the raw URL path, which keeps label cardinality bounded.
Requests that match no route are recorded as "unmatched".

See Also:

  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
