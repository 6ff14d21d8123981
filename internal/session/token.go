// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by InspectToken for opaque tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// TokenInfo is what syncd reads from an access token. The signature is never
// checked here: the backend verifies the token on every request and on the
// push handshake.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry at or before now.
// Tokens without exp never expire locally.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// InspectToken extracts sub and exp from a JWT without verifying it.
func InspectToken(token string) (TokenInfo, error) {
	if strings.Count(token, ".") != 2 {
		return TokenInfo{}, ErrNotJWT
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("inspect token: %w", err)
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
