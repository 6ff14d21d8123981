// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolfin/syncd/internal/logging"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestIDHeader is read from upstream proxies and echoed on every response.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds IDs accepted from clients.
const maxRequestIDLength = 128

// RequestID middleware assigns each request an ID, taken from X-Request-ID
// when the caller supplied a usable one. The ID is set on the response header,
// stored in the request context and used as the logging correlation ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithCorrelationID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
