// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package models

import "time"

// APIResponse wraps every JSON body served by the status surface.
//
//	{
//	  "status": "success",
//	  "data": {"isConnected": true, "syncMethod": "websocket"},
//	  "metadata": {"timestamp": "2026-01-02T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SyncStatus is the body of GET /v1/status.
type SyncStatus struct {
	IsConnected       bool      `json:"isConnected"`
	ConnectionStatus  string    `json:"connectionStatus"`
	SyncMethod        string    `json:"syncMethod"`
	Authenticated     bool      `json:"authenticated"`
	UserID            string    `json:"userId,omitempty"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	LastCheck         time.Time `json:"lastCheck,omitempty"`
	RelayListeners    int       `json:"relayListeners"`
}

// RefreshResult is the body of POST /v1/refresh.
type RefreshResult struct {
	Updated bool   `json:"updated"`
	Error   string `json:"error,omitempty"`
}
