// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package metrics defines the Prometheus instrumentation for syncd.

All collectors are registered on the default registry through promauto and are
served by the status surface at GET /metrics.

# Metric Families

Push connection:
  - syncd_push_connection_state: 0=uninstantiated 1=connecting 2=open 3=closing 4=closed
  - syncd_push_connections_total{result}: dial outcomes (opened, failed, auth_rejected)
  - syncd_push_reconnect_attempts_total: scheduled reconnects
  - syncd_push_messages_received_total{type}: inbound messages by envelope type
  - syncd_push_messages_dropped_total{reason}: malformed, panic, unauthenticated
  - syncd_push_ping_rtt_seconds: ping/pong round trip

Refresh and staleness check:
  - syncd_refresh_total{trigger,result}: shared refresh routine outcomes
  - syncd_refresh_duration_seconds{trigger}
  - syncd_staleness_checks_total{result}: throttled, unchanged, updated, logout, error
  - syncd_last_successful_check_timestamp_seconds

Session and local broadcast:
  - syncd_forced_logouts_total{reason}
  - syncd_broadcast_events_total{topic}
  - syncd_relay_listeners: connected local listeners

Backend client:
  - syncd_backend_requests_total{endpoint,status_code}
  - syncd_backend_request_duration_seconds{endpoint}
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result},
    circuit_breaker_consecutive_failures{name},
    circuit_breaker_state_transitions_total{name,from_state,to_state}

Status surface:
  - syncd_api_requests_total{method,endpoint,status_code}
  - syncd_api_request_duration_seconds{method,endpoint}
*/
package metrics
