// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ============================================================================
// Push Endpoint Message Models
// ============================================================================
// Endpoint: {ws(s)://api origin}/v1/ws/user-updates?token={access token}

// Message types carried in Envelope.Type.
const (
	MessageTypeConnectionEstablished = "connection_established"
	MessageTypeUserUpdate            = "user_update"
	MessageTypeNotification          = "notification"
	MessageTypeUserManagement        = "user_management"
	MessageTypeSchoolManagement      = "school_management"
	MessageTypePing                  = "ping"
	MessageTypePong                  = "pong"
)

// Sub-tags carried in Envelope.UpdateType for user_update messages.
const (
	UpdateProfileUpdated   = "profile_updated"
	UpdateAvatarUpdated    = "avatar_updated"
	UpdateSignatureUpdated = "signature_updated"
	UpdatePasswordChanged  = "password_changed"
	UpdateUserDeactivated  = "user_deactivated"
)

// Envelope is one inbound push message. Only the fields relevant to Type are
// populated; Data is kept raw and forwarded untouched.
type Envelope struct {
	Type             string          `json:"type"`
	UpdateType       string          `json:"update_type,omitempty"`
	ManagementType   string          `json:"management_type,omitempty"`
	NotificationType string          `json:"notification_type,omitempty"`
	UserID           EntityID        `json:"user_id,omitempty"`
	SchoolID         EntityID        `json:"school_id,omitempty"`
	NotificationID   EntityID        `json:"notification_id,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
	Timestamp        int64           `json:"timestamp,omitempty"` // epoch milliseconds
}

// ParseEnvelope decodes a push frame. A frame without a type is rejected.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode push message: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode push message: missing type")
	}
	return &env, nil
}

// SubType returns whichever sub-tag the message carries.
func (e *Envelope) SubType() string {
	switch {
	case e.UpdateType != "":
		return e.UpdateType
	case e.ManagementType != "":
		return e.ManagementType
	default:
		return e.NotificationType
	}
}

// EntityRef returns the identifier of the entity the message is about:
// the notification, school or user id, in that order.
func (e *Envelope) EntityRef() string {
	switch {
	case e.NotificationID != "":
		return string(e.NotificationID)
	case e.SchoolID != "":
		return string(e.SchoolID)
	default:
		return string(e.UserID)
	}
}

// PingMessage is the client heartbeat frame.
type PingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// NewPingMessage returns a ping stamped with now.
func NewPingMessage(now time.Time) PingMessage {
	return PingMessage{Type: MessageTypePing, Timestamp: now.UnixMilli()}
}

// EntityID is an identifier that the backend may encode as either a JSON
// string or a JSON number. It is always compared as a string.
type EntityID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *EntityID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntityID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("entity id must be a string or number, got %s", b)
	}
	*id = EntityID(b)
	return nil
}

// String returns the identifier.
func (id EntityID) String() string { return string(id) }
