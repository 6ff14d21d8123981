// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Push connection metrics
	PushConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncd_push_connection_state",
			Help: "Push connection state (0=uninstantiated, 1=connecting, 2=open, 3=closing, 4=closed)",
		},
	)

	PushConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_push_connections_total",
			Help: "Total push connection attempts by outcome",
		},
		[]string{"result"}, // "opened", "failed", "auth_rejected"
	)

	PushReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_push_reconnect_attempts_total",
			Help: "Total number of scheduled push reconnect attempts",
		},
	)

	PushMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_push_messages_received_total",
			Help: "Total push messages received by envelope type",
		},
		[]string{"type"},
	)

	PushMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_push_messages_dropped_total",
			Help: "Total push messages dropped before dispatch",
		},
		[]string{"reason"},
	)

	PushPingRTT = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syncd_push_ping_rtt_seconds",
			Help:    "Round trip time between ping and pong on the push connection",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// Refresh metrics
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_refresh_total",
			Help: "Total profile refreshes by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_refresh_duration_seconds",
			Help:    "Duration of profile refreshes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	StalenessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_staleness_checks_total",
			Help: "Total staleness checks by result",
		},
		[]string{"result"}, // "throttled", "unchanged", "updated", "logout", "error", "skipped"
	)

	LastSuccessfulCheck = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncd_last_successful_check_timestamp_seconds",
			Help: "Unix timestamp of the last staleness check that reached the backend",
		},
	)

	// Session and local broadcast metrics
	ForcedLogouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_forced_logouts_total",
			Help: "Total forced logouts by reason",
		},
		[]string{"reason"},
	)

	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_broadcast_events_total",
			Help: "Total local broadcast events published by topic",
		},
		[]string{"topic"},
	)

	RelayListeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncd_relay_listeners",
			Help: "Current number of local listeners connected to the event relay",
		},
	)

	RelayMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_relay_messages_sent_total",
			Help: "Total events written to local listeners",
		},
	)

	// Backend client metrics
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_backend_requests_total",
			Help: "Total backend REST requests",
		},
		[]string{"endpoint", "status_code"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_backend_request_duration_seconds",
			Help:    "Backend REST request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Status surface metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_api_requests_total",
			Help: "Total number of status surface requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_api_request_duration_seconds",
			Help:    "Status surface request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordPushState sets the connection state gauge from the state's ordinal.
func RecordPushState(ordinal int) {
	PushConnectionState.Set(float64(ordinal))
}

// RecordPingRTT observes a ping round trip.
func RecordPingRTT(rtt time.Duration) {
	PushPingRTT.Observe(rtt.Seconds())
}

// RecordRefresh records the outcome of one run of the shared refresh routine.
func RecordRefresh(trigger string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	RefreshTotal.WithLabelValues(trigger, result).Inc()
	RefreshDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordStalenessCheck records a staleness check outcome. Outcomes other than
// "throttled" and "skipped" reached the backend.
func RecordStalenessCheck(result string) {
	StalenessChecks.WithLabelValues(result).Inc()
	switch result {
	case "throttled", "skipped", "error":
	default:
		LastSuccessfulCheck.Set(float64(time.Now().Unix()))
	}
}

// RecordBackendRequest records one REST call to the backend.
func RecordBackendRequest(endpoint string, statusCode int, duration time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	BackendRequests.WithLabelValues(endpoint, code).Inc()
	BackendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records a status surface request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
