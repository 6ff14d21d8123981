// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package models

import "github.com/goccy/go-json"

// Local broadcast topics.
const (
	TopicNotification     = "websocket-notification"
	TopicUserManagement   = "websocket-user-management"
	TopicSchoolManagement = "websocket-school-management"
	TopicSessionLogout    = "session-logout"
)

// BroadcastTopics lists every topic published on the local bus.
var BroadcastTopics = []string{
	TopicNotification,
	TopicUserManagement,
	TopicSchoolManagement,
	TopicSessionLogout,
}

// BroadcastEvent is the payload of a local broadcast. Type is the sub-tag of
// the originating push message (for example "new_notification" or "updated").
type BroadcastEvent struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// RelayFrame is what a local listener receives on GET /v1/events.
type RelayFrame struct {
	Topic string         `json:"topic"`
	Event BroadcastEvent `json:"event"`
}

// BroadcastTopicFor returns the local topic for a push message type, or ""
// when the type is not broadcast.
func BroadcastTopicFor(messageType string) string {
	switch messageType {
	case MessageTypeNotification:
		return TopicNotification
	case MessageTypeUserManagement:
		return TopicUserManagement
	case MessageTypeSchoolManagement:
		return TopicSchoolManagement
	default:
		return ""
	}
}

// NewBroadcastEvent builds the broadcast payload for a push message.
func NewBroadcastEvent(env *Envelope) BroadcastEvent {
	return BroadcastEvent{
		Type:      env.SubType(),
		ID:        env.EntityRef(),
		Data:      env.Data,
		Timestamp: env.Timestamp,
	}
}
