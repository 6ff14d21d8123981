// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/schoolfin/syncd/internal/metrics"
)

// unmatchedRoute labels requests that no route handled.
const unmatchedRoute = "unmatched"

// PrometheusMetrics records request count and latency for every request.
// The response writer keeps http.Hijacker so websocket upgrades still work.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			// hijacked or nothing written
			status = http.StatusOK
		}

		metrics.RecordAPIRequest(
			r.Method,
			routePattern(r),
			strconv.Itoa(status),
			time.Since(start),
		)
	})
}

// routePattern returns the matched chi pattern. It must be called after the
// router has served the request.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
