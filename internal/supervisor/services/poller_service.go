// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package services

import (
	"context"
	"fmt"
)

// StartStopper is satisfied by *refresh.Poller.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// PollerService supervises the staleness poller.
type PollerService struct {
	poller StartStopper
	name   string
}

func NewPollerService(poller StartStopper) *PollerService {
	return &PollerService{
		poller: poller,
		name:   "staleness-poller",
	}
}

// Serve starts the poller, waits for shutdown and stops it. Stop blocks
// until the poll loop has exited.
func (p *PollerService) Serve(ctx context.Context) error {
	if err := p.poller.Start(ctx); err != nil {
		return fmt.Errorf("poller start failed: %w", err)
	}

	<-ctx.Done()
	p.poller.Stop()
	return ctx.Err()
}

func (p *PollerService) String() string {
	return p.name
}
