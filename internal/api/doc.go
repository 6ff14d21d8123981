// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package api provides the local HTTP status surface for syncd.

The surface is small and meant for a local UI or an operator: it reports
whether the push connection is up, which sync method is active, lets the
caller force a staleness check and relays broadcast events to local
listeners over a websocket.

Endpoints:

	GET  /healthz        liveness probe
	GET  /v1/status      connection and sync status (models.SyncStatus)
	POST /v1/refresh     forced staleness check (rate limited per IP)
	POST /v1/reconnect   restart the push connection after re-authentication
	GET  /v1/events      websocket relay of broadcast events
	GET  /metrics        Prometheus metrics

Every JSON body uses the models.APIResponse envelope:

	{
	  "status": "success",
	  "data": {"isConnected": true, "syncMethod": "websocket"},
	  "metadata": {"timestamp": "2026-01-02T12:00:00Z", "correlation_id": "..."}
	}

Errors set status to "error" and carry a machine readable code:

  - UNAUTHENTICATED: no usable session (401)
  - USER_DEACTIVATED: the backend reports the account deactivated (403)
  - REALTIME_DISABLED: reconnect requested while the push client is off (409)
  - RATE_LIMITED: refresh limit exceeded (429)
  - REFRESH_FAILED: the backend check failed (502)

Middleware Stack:

Applied to all routes in order: request ID with logging correlation, real IP
extraction, panic recovery, Prometheus request metrics and CORS.

See Also:

  - internal/refresh: staleness check behind /v1/refresh
  - internal/realtime: push client reported by /v1/status
  - internal/websocket: relay hub behind /v1/events
*/
package api
