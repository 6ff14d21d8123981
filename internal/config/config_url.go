// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL checks that rawURL is an http(s) origin, optionally with a
// path prefix, and carries no query or fragment. The push URL is derived from
// it by swapping the scheme, so anything after the path would be lost.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	if parsedURL.Fragment != "" {
		return fmt.Errorf("%s should not contain a fragment, remove: #%s", fieldName, parsedURL.Fragment)
	}

	return nil
}
