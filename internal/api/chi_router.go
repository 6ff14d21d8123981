// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schoolfin/syncd/internal/middleware"
	ws "github.com/schoolfin/syncd/internal/websocket"
)

// Router wires the handlers into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	relay         *ws.Hub
	allowedOrigin []string
}

// NewRouter creates a router. relay may be nil, in which case /v1/events is
// not served.
func NewRouter(handler *Handler, relay *ws.Hub, config *ChiMiddlewareConfig) *Router {
	m := NewChiMiddleware(config)
	return &Router{
		handler:       handler,
		chiMiddleware: m,
		relay:         relay,
		allowedOrigin: m.config.CORSAllowedOrigins,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", router.handler.Status)
		r.With(router.chiMiddleware.RateLimit()).Post("/refresh", router.handler.Refresh)
		r.Post("/reconnect", router.handler.Reconnect)

		if router.relay != nil {
			r.Get("/events", router.relay.ServeWS(ws.Upgrader(router.allowedOrigin)))
		}
	})

	return r
}
