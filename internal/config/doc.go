// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package config provides layered configuration for syncd.

# Configuration Sources

Settings are merged with koanf v2 in this order, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml, /etc/syncd/config.yaml
 3. Environment variables listed below

# Environment Variables

Backend (APIConfig):
  - SYNC_API_URL: backend origin, http or https (required)
  - SYNC_API_TIMEOUT: per-request timeout (default: 15s)
  - SYNC_API_RPS / SYNC_API_BURST: client-side rate limit (default: 5 / 10)
  - SYNC_BREAKER_*: circuit breaker tuning

Session (AuthConfig):
  - SYNC_ACCESS_TOKEN or SYNC_TOKEN_FILE: bearer token (one is required)
  - SYNC_USER_ID: local identity, defaults to the token subject
  - SYNC_EXIT_ON_LOGOUT: stop the daemon after a forced logout (default: false)

Push connection (RealtimeConfig):
  - SYNC_REALTIME_ENABLED (default: true)
  - SYNC_REALTIME_PATH (default: /v1/ws/user-updates)
  - SYNC_MAX_RECONNECT_ATTEMPTS (default: 5)
  - SYNC_RECONNECT_BASE_DELAY / SYNC_RECONNECT_MAX_DELAY (default: 1s / 10s)
  - SYNC_PING_INTERVAL (default: 30s)

Staleness check (PollingConfig):
  - SYNC_POLLING_ENABLED (default: true)
  - SYNC_POLL_TICK (default: 5s)
  - SYNC_POLL_CONNECTED_INTERVAL / SYNC_POLL_DISCONNECTED_INTERVAL (default: 60s / 10s)

Status surface (ServerConfig):
  - HTTP_ENABLED, HTTP_HOST (default: 127.0.0.1), HTTP_PORT (default: 8787)
  - CORS_ORIGINS: comma-separated list
  - REFRESH_RATE_LIMIT / REFRESH_RATE_WINDOW: POST /v1/refresh budget (default: 6 per 1m)

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Example

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
*/
package config
