// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/schoolfin/syncd/internal/models"
	ws "github.com/schoolfin/syncd/internal/websocket"
)

type mockContextHub struct {
	runErr   error
	runCount atomic.Int32
	started  chan struct{}
}

func newMockContextHub() *mockContextHub {
	return &mockContextHub{started: make(chan struct{}, 1)}
}

func (m *mockContextHub) RunWithContext(ctx context.Context) error {
	m.runCount.Add(1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService(t *testing.T) {
	var _ suture.Service = (*WebSocketHubService)(nil)

	hub := newMockContextHub()
	svc := NewWebSocketHubService(hub)
	if svc.String() != "relay-hub" {
		t.Errorf("String() = %q, want relay-hub", svc.String())
	}

	err := serveUntilCanceled(t, svc, hub.started)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	failing := newMockContextHub()
	failing.runErr = errors.New("hub crashed")
	if err := NewWebSocketHubService(failing).Serve(context.Background()); !errors.Is(err, failing.runErr) {
		t.Errorf("expected hub error, got %v", err)
	}
}

func TestWebSocketHubService_RealHub(t *testing.T) {
	hub := ws.NewHub()
	svc := NewWebSocketHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	hub.BroadcastFrame(models.RelayFrame{Topic: models.TopicNotification})
	cancel()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	select {
	case <-hub.Done():
	default:
		t.Error("hub should report done after shutdown")
	}
}
