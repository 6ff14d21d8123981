// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/schoolfin/syncd/internal/logging"
)

// Poller is the polling fallback. It ticks often and lets the Syncer's
// throttle decide whether a check actually reaches the backend, which turns
// the tick into a 60s cadence while the push connection is healthy and a 10s
// cadence while it is not.
type Poller struct {
	syncer   *Syncer
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoller returns a stopped poller ticking every interval (default 5s).
func NewPoller(syncer *Syncer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{syncer: syncer, interval: interval}
}

// Start begins the polling loop. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	logging.Info().Dur("tick", p.interval).Msg("Starting staleness poller")

	p.wg.Add(1)
	go p.pollLoop(ctx)

	return nil
}

// Stop stops the polling loop and waits for an in-flight check.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Msg("Staleness poller stopped")
}

// IsRunning reports whether the loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	ctx = logging.ContextWithNewCorrelationID(ctx)

	if !p.syncer.HasMirror() {
		err := p.syncer.Bootstrap(ctx)
		switch {
		case errors.Is(err, ErrDeactivated):
			logging.Ctx(ctx).Info().Msg("Account deactivated, polling idle until the next login")
		case err != nil:
			logging.Ctx(ctx).Debug().Err(err).Msg("Initial mirror load failed")
		}
		return
	}

	updated, err := p.syncer.CheckForUpdates(ctx)
	if errors.Is(err, ErrDeactivated) {
		logging.Ctx(ctx).Info().Msg("Account deactivated, polling idle until the next login")
		return
	}
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Staleness check failed")
		return
	}
	if updated {
		logging.Ctx(ctx).Info().Str("sync_method", p.syncer.SyncMethod()).Msg("Polling picked up a newer profile")
	}
}
