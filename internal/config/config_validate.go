// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package config

import (
	"fmt"

	"github.com/schoolfin/syncd/internal/validation"
)

// Validate checks struct tag rules first, then the cross-field rules tags
// cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := validateHTTPURL(c.API.BaseURL, "SYNC_API_URL"); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	return c.validatePolling()
}

func (c *Config) validateAuth() error {
	if c.Auth.AccessToken == "" && c.Auth.TokenFile == "" {
		return fmt.Errorf("SYNC_ACCESS_TOKEN or SYNC_TOKEN_FILE is required")
	}
	if c.Auth.AccessToken != "" && c.Auth.TokenFile != "" {
		return fmt.Errorf("set only one of SYNC_ACCESS_TOKEN and SYNC_TOKEN_FILE")
	}
	return nil
}

func (c *Config) validatePolling() error {
	if !c.Realtime.Enabled && !c.Polling.Enabled {
		return fmt.Errorf("at least one of realtime.enabled and polling.enabled must be true")
	}
	if c.Polling.TickInterval > c.Polling.DisconnectedInterval {
		return fmt.Errorf("polling.tick_interval (%s) must not exceed polling.disconnected_interval (%s)",
			c.Polling.TickInterval, c.Polling.DisconnectedInterval)
	}
	return nil
}
