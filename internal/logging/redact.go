// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package logging

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameters whose values never reach the logs.
var sensitiveParams = []string{"token", "access_token", "api_key"}

// SanitizeToken masks a credential, keeping the first and last 4 characters.
//
//	"eyJhbGciOiJIUzI1NiJ9.e30.sig" -> "eyJh...9sig"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RedactURL masks credential-bearing query parameters in a URL so that the
// push endpoint can be logged. Unparseable input is replaced wholesale.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	if u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	for key := range q {
		for _, p := range sensitiveParams {
			if strings.EqualFold(key, p) {
				q.Set(key, SanitizeToken(q.Get(key)))
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
