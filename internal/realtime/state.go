// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package realtime

// ConnectionState is the state of the push connection.
type ConnectionState int32

const (
	StateUninstantiated ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

// String returns the lower-case state name.
func (s ConnectionState) String() string {
	switch s {
	case StateUninstantiated:
		return "uninstantiated"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status returns the display form used by the status surface.
func (s ConnectionState) Status() string {
	switch s {
	case StateUninstantiated:
		return "Uninstantiated"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
