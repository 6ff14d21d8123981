// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/schoolfin/syncd/internal/config"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// Rate limiting configuration for POST /v1/refresh
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	RateLimitKeyFunc  httprate.KeyFunc
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID", "ETag"},
		CORSMaxAge:         86400,

		RateLimitRequests: 6,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddlewareConfigFromServer maps the server section of the config file.
func ChiMiddlewareConfigFromServer(cfg *config.ServerConfig) *ChiMiddlewareConfig {
	mc := DefaultChiMiddlewareConfig()
	if cfg == nil {
		return mc
	}
	mc.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RefreshRateLimit > 0 {
		mc.RateLimitRequests = cfg.RefreshRateLimit
	}
	if cfg.RefreshRateWindow > 0 {
		mc.RateLimitWindow = cfg.RefreshRateWindow
	}
	return mc
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	// go-chi/cors treats an empty origin list as "allow all", so no
	// configured origins means no CORS headers at all.
	corsHandler := func(next http.Handler) http.Handler { return next }
	if len(config.CORSAllowedOrigins) > 0 {
		corsHandler = cors.Handler(cors.Options{
			AllowedOrigins:   config.CORSAllowedOrigins,
			AllowedMethods:   config.CORSAllowedMethods,
			AllowedHeaders:   config.CORSAllowedHeaders,
			ExposedHeaders:   config.CORSExposedHeaders,
			AllowCredentials: config.CORSAllowCredentials,
			MaxAge:           config.CORSMaxAge,
		})
	}

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns a Chi-compatible rate limiting middleware using go-chi/httprate.
// Rejected requests get a RATE_LIMITED error body.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	keyFunc := m.config.RateLimitKeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, "RATE_LIMITED",
				"Too many refresh requests, try again later", nil)
		}),
	)
}
