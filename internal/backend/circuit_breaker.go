// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package backend

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/schoolfin/syncd/internal/config"
	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
)

// CircuitBreakerClient wraps a ClientInterface with sony/gobreaker. While the
// circuit is open, refreshes fail fast instead of piling requests onto a
// backend that is already struggling; the next push message or poll tick
// retries naturally.
//
// 4xx responses and caller cancellation count as successes: they say nothing
// about backend health.
type CircuitBreakerClient struct {
	client ClientInterface
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

var _ ClientInterface = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps client. The circuit opens after
// cfg.FailureThreshold consecutive failures, or when the failure ratio within
// cfg.Interval reaches cfg.FailureRatio over at least cfg.MinRequests requests.
func NewCircuitBreakerClient(client ClientInterface, cfg config.BreakerConfig) *CircuitBreakerClient {
	cbName := "backend-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.FailureThreshold > 0 && counts.ConsecutiveFailures >= cfg.FailureThreshold {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= cfg.FailureRatio {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: func(err error) bool {
			return err == nil ||
				IsClientError(err) ||
				errors.Is(err, ErrNoToken) ||
				errors.Is(err, ErrResponseTooLarge) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// State returns the current breaker state as "closed", "half-open" or "open".
func (cbc *CircuitBreakerClient) State() string {
	return stateToString(cbc.cb.State())
}

func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
			counts := cbc.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func castBytes(result interface{}, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	b, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return b, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetCurrentUser fetches the profile with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetCurrentUser(ctx context.Context) (*models.UserProfile, error) {
	return castResult[models.UserProfile](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetCurrentUser(ctx)
	}))
}

// GetUserAvatar fetches the avatar with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetUserAvatar(ctx context.Context, urn string) ([]byte, error) {
	return castBytes(cbc.execute(func() (interface{}, error) {
		return cbc.client.GetUserAvatar(ctx, urn)
	}))
}

// GetSchool fetches a school with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSchool(ctx context.Context, id string) (*models.School, error) {
	return castResult[models.School](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSchool(ctx, id)
	}))
}

// GetSchoolLogo fetches a logo with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSchoolLogo(ctx context.Context, urn string) ([]byte, error) {
	return castBytes(cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSchoolLogo(ctx, urn)
	}))
}
