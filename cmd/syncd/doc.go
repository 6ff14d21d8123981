// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package main is the entry point for the syncd daemon.

syncd keeps a local mirror of the signed-in user's profile, avatar, school and
school logo in step with the SchoolFin backend. It listens for push messages
on a websocket and falls back to throttled polling whenever that connection
is down.

# Application Architecture

	RootSupervisor ("syncd")
	├── SyncSupervisor ("sync-layer")
	│   ├── realtime-client (push connection, bounded reconnect)
	│   └── staleness-poller (polling fallback)
	└── APISupervisor ("api-layer")
	    ├── relay-hub (local listener fan-out)
	    ├── event-forwarder (bus to relay)
	    └── http-server (status surface)

Component initialization order:

 1. Configuration: koanf v2 with defaults, optional YAML file and env vars
 2. Logging: zerolog, level and format from configuration
 3. Session: access token from config or a token file re-read on access
 4. Backend client: rate limited REST client behind a circuit breaker
 5. Mirror stores, local broadcast bus and refresh syncer
 6. Realtime client and poller
 7. Relay hub, forwarder and chi status surface
 8. Supervisor tree

# Session Transitions

A forced logout closes the push connection without reconnecting, clears the
mirror and publishes a session-logout event. With auth.exit_on_logout set the
daemon then shuts down. A later login restarts the push connection.

# Signals

SIGINT and SIGTERM cancel the root context. Every service stops within the
server shutdown timeout; services that do not are reported before exit.

When a config file is in use, changes to logging.level apply without a
restart.
*/
package main
