// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package realtime

import (
	"errors"
	"math"
	"time"

	"github.com/gorilla/websocket"
)

// CloseAuthRejected is the application close code the server uses when it
// rejects the connection's credentials. The client never reconnects after it.
const CloseAuthRejected = 4001

// ReconnectDelay returns min(base * 2^attempt, limit). A non-positive limit
// means uncapped.
func ReconnectDelay(attempt int, base, limit time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = time.Duration(math.MaxInt64)
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		if delay > limit/2 {
			return limit
		}
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

// ShouldReconnect reports whether a reconnect may be scheduled after a close
// with closeCode, given attempts already made out of maxAttempts.
func ShouldReconnect(closeCode, attempts, maxAttempts int, authenticated bool) bool {
	if !authenticated {
		return false
	}
	if closeCode == CloseAuthRejected {
		return false
	}
	return attempts < maxAttempts
}

// closeCodeOf extracts the close code from a read error. Errors without a
// close frame count as an abnormal closure.
func closeCodeOf(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
