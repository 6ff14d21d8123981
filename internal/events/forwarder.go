// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/models"
)

// Broadcaster receives every forwarded event. The relay hub implements it.
type Broadcaster interface {
	BroadcastFrame(frame models.RelayFrame)
}

// Forwarder relays a set of bus topics to a Broadcaster.
type Forwarder struct {
	bus    *Bus
	target Broadcaster
	topics []string
}

// NewForwarder relays topics, or every broadcast topic when none are given.
func NewForwarder(bus *Bus, target Broadcaster, topics ...string) *Forwarder {
	if len(topics) == 0 {
		topics = models.BroadcastTopics
	}
	return &Forwarder{bus: bus, target: target, topics: topics}
}

// Run forwards until ctx is done or the bus closes.
func (f *Forwarder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range f.topics {
		ch, err := f.bus.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("forwarder: %w", err)
		}

		wg.Add(1)
		go func(topic string, ch <-chan models.BroadcastEvent) {
			defer wg.Done()
			for ev := range ch {
				f.target.BroadcastFrame(models.RelayFrame{Topic: topic, Event: ev})
			}
		}(topic, ch)
	}

	logging.Debug().Strs("topics", f.topics).Msg("Event forwarder started")
	<-ctx.Done()
	wg.Wait()
	return nil
}

// String implements fmt.Stringer for the supervisor.
func (f *Forwarder) String() string {
	return "event-forwarder"
}
