// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package services

import (
	"context"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService runs the local listener relay hub.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "relay-hub",
	}
}

// Serve delegates to RunWithContext, which closes every listener when ctx
// is canceled.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

func (w *WebSocketHubService) String() string {
	return w.name
}
