// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is wrapped by StatusError for 401 responses.
	ErrUnauthorized = errors.New("backend rejected credentials")

	// ErrNoToken is returned without contacting the backend when the session
	// has no usable access token.
	ErrNoToken = errors.New("no access token")

	// ErrResponseTooLarge is returned when a 2xx body exceeds the read limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Unwrap exposes ErrUnauthorized for 401 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// IsClientError reports whether err is a 4xx StatusError. Client errors say
// nothing about backend health and do not count against the circuit breaker.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}
