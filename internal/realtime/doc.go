// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package realtime maintains the single authenticated push connection to the
SchoolFin backend and turns inbound messages into local side effects.

Push Endpoint: {ws(s)://api origin}/v1/ws/user-updates?token={access token}

# Connection Lifecycle

	uninstantiated -> connecting -> open -> closed -> connecting ...

The reconnect counter resets to zero when a connection opens. After a close,
the client reconnects with delay min(base * 2^attempt, cap) unless:

  - the session is no longer authenticated
  - the counter has reached MaxReconnectAttempts (default 5)
  - the server closed with code 4001 (authentication rejected), or the
    handshake was answered with HTTP 401 or 403
  - Close was called

In any of these cases the client stays closed until Retrigger is called or
the context passed to Run is canceled.

# Message Handling

  - connection_established: logged
  - user_update profile_updated, avatar_updated, signature_updated: shared
    refresh routine, only when user_id matches the local identity
  - user_update password_changed: logged
  - user_update user_deactivated: forced logout when user_id matches
  - notification, user_management, school_management: published on the
    local bus as websocket-notification, websocket-user-management and
    websocket-school-management
  - pong: round-trip time logged and observed
  - anything else: logged and ignored

Malformed frames are logged and dropped without affecting the connection.

# Keepalive

While open, a {"type":"ping","timestamp":<epoch-ms>} frame is sent every
PingInterval. Pongs are diagnostic only; liveness is decided by the
transport's close and error events.
*/
package realtime
