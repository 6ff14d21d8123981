// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package realtime

import (
	"net/url"
	"strings"
)

// BuildURL derives the push endpoint from the API origin: http becomes ws,
// https becomes wss, path replaces any base path and the token travels in the
// token query parameter. It returns ("", false) when there is nothing to
// connect to.
func BuildURL(baseURL, path, token string) (string, bool) {
	if token == "" || baseURL == "" {
		return "", false
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "", false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", false
	}

	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawPath = ""
	u.Fragment = ""
	u.RawQuery = url.Values{"token": []string{token}}.Encode()

	return u.String(), true
}
