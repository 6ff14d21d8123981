// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schoolfin/syncd/internal/logging"
)

// Upgrader returns the upgrader used for listener connections. Requests with
// an Origin header must match allowedOrigins ("*" allows any); requests
// without one come from local tools and are accepted.
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			logging.Warn().Str("origin", origin).Msg("Relay connection rejected: origin not allowed")
			return false
		},
	}
}

// ServeWS upgrades the request and registers the listener with the hub.
func (h *Hub) ServeWS(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-h.Done():
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		default:
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Debug().Err(err).Msg("Relay upgrade failed")
			return
		}

		client := NewClient(h, conn)
		select {
		case h.Register <- client:
		case <-h.Done():
			_ = conn.Close()
			return
		case <-r.Context().Done():
			_ = conn.Close()
			return
		}
		client.Start()
	}
}
