// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schoolfin/syncd/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// clientIDCounter hands out increasing ids so broadcasts visit listeners in a
// stable order.
var clientIDCounter atomic.Uint64

// Client is one local listener connection.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps conn. Register it with the hub, then call Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 64),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// readPump drains the connection so control frames are processed. Listener
// messages are ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("Relay listener closed unexpectedly")
			}
			return
		}
	}
}

// writePump writes queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("Failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("Failed to write relay frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
