// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/models"
	"github.com/schoolfin/syncd/internal/refresh"
)

// connectionStatusDisabled is reported when the push client is turned off.
const connectionStatusDisabled = "Disabled"

// PushStatus is the view of the realtime client the handlers need.
type PushStatus interface {
	IsConnected() bool
	ConnectionStatus() string
	ReconnectAttempts() int
	Retrigger()
}

// StalenessChecker is the view of the refresh syncer the handlers need.
type StalenessChecker interface {
	SyncMethod() string
	LastCheck() time.Time
	ForceRefresh(ctx context.Context) (bool, error)
}

// SessionStatus is the view of the session the handlers need.
type SessionStatus interface {
	IsAuthenticated() bool
	UserID() string
}

// ListenerCounter reports how many local listeners the relay serves.
type ListenerCounter interface {
	GetClientCount() int
}

// Handler contains dependencies for API handlers
type Handler struct {
	session   SessionStatus
	syncer    StalenessChecker
	push      PushStatus // nil when realtime is disabled
	listeners ListenerCounter
	startTime time.Time
}

// NewHandler creates the status surface handlers. push may be nil when the
// realtime client is disabled; listeners may be nil when no relay runs.
func NewHandler(session SessionStatus, syncer StalenessChecker, push PushStatus, listeners ListenerCounter) *Handler {
	return &Handler{
		session:   session,
		syncer:    syncer,
		push:      push,
		listeners: listeners,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health reports liveness. It never depends on the backend.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newResponse(r, HealthResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}))
}

// Status reports the push connection and sync method.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newResponse(r, h.syncStatus()))
}

func (h *Handler) syncStatus() models.SyncStatus {
	status := models.SyncStatus{
		ConnectionStatus: connectionStatusDisabled,
		SyncMethod:       h.syncer.SyncMethod(),
		Authenticated:    h.session.IsAuthenticated(),
		LastCheck:        h.syncer.LastCheck(),
	}
	if status.Authenticated {
		status.UserID = h.session.UserID()
	}
	if h.push != nil {
		status.IsConnected = h.push.IsConnected()
		status.ConnectionStatus = h.push.ConnectionStatus()
		status.ReconnectAttempts = h.push.ReconnectAttempts()
	}
	if h.listeners != nil {
		status.RelayListeners = h.listeners.GetClientCount()
	}
	return status
}

// Refresh runs a staleness check immediately, bypassing the throttle.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.session.IsAuthenticated() {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "No active session", nil)
		return
	}

	updated, err := h.syncer.ForceRefresh(r.Context())
	switch {
	case errors.Is(err, refresh.ErrDeactivated):
		respondError(w, r, http.StatusForbidden, "USER_DEACTIVATED", "The account has been deactivated", err)
		return
	case err != nil:
		respondError(w, r, http.StatusBadGateway, "REFRESH_FAILED", "Failed to check for updates", err)
		return
	}

	logging.Ctx(r.Context()).Info().Bool("updated", updated).Msg("Forced refresh completed")
	respondJSON(w, http.StatusOK, newResponse(r, models.RefreshResult{Updated: updated}))
}

// Reconnect asks the push client to connect again, for instance after the
// user signed back in.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if h.push == nil {
		respondError(w, r, http.StatusConflict, "REALTIME_DISABLED", "Realtime updates are disabled", nil)
		return
	}
	if !h.session.IsAuthenticated() {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "No active session", nil)
		return
	}

	h.push.Retrigger()
	respondJSON(w, http.StatusAccepted, newResponse(r, h.syncStatus()))
}
