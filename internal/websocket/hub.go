// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of local listeners and fans broadcast frames out to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.RelayFrame
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan models.RelayFrame, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// listener and returns ctx.Err().
//
// Selection is prioritized: shutdown first, then listener lifecycle, then
// broadcasts, so a listener is always registered before frames reach it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case frame := <-h.broadcast:
			h.broadcastToClients(frame)
		}
	}
}

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.RelayListeners.Set(float64(count))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", count).Msg("Relay listener connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.RelayListeners.Set(float64(count))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", count).Msg("Relay listener disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()
	h.stopOnce.Do(func() { close(h.done) })

	logging.Info().
		Str("component", "relay-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("Relay hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients encodes frame once and queues it for every listener in
// id order. Listeners whose queue is full are dropped.
func (h *Hub) broadcastToClients(frame models.RelayFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logging.Warn().Err(err).Str("topic", frame.Topic).Msg("Failed to encode relay frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- payload:
			metrics.RelayMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		logging.Warn().Uint64("client_id", client.id).Msg("Relay listener too slow, disconnecting")
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.RelayListeners.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.RelayListeners.Set(0)
}

func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// BroadcastFrame queues frame for every listener. It never blocks; frames
// are dropped when the hub is backed up.
func (h *Hub) BroadcastFrame(frame models.RelayFrame) {
	select {
	case h.broadcast <- frame:
	default:
		logging.Warn().Str("topic", frame.Topic).Msg("Relay broadcast channel full, dropping frame")
	}
}

// GetClientCount returns the number of connected listeners.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// String implements fmt.Stringer for the supervisor.
func (h *Hub) String() string {
	return "relay-hub"
}
