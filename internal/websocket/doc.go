// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package websocket relays local broadcast events to listeners connected at
GET /v1/events.

Every frame is a models.RelayFrame:

	{"topic":"websocket-notification","event":{"type":"new_notification","id":"n1","data":{...},"timestamp":1704067200000}}

The relay is one-way: messages from listeners are ignored. The hub pings
every listener at the protocol level and drops any listener whose send queue
fills up.

# Architecture

  - Hub: owns the listener set. RunWithContext runs under the supervisor and
    closes every listener on shutdown.
  - Client: one connection with a readPump and a writePump goroutine.
  - events.Forwarder feeds the hub through BroadcastFrame.
*/
package websocket
