// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

// Package events is the in-process broadcast bus. The realtime client
// publishes notification, user management and school management events here
// for decoupled listeners; the session publishes session-logout.
//
// The bus is a watermill gochannel pub/sub. Publishing with no subscribers is
// a no-op, and a subscriber that falls behind loses events rather than
// stalling the publisher.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("event bus closed")

const subscriberBuffer = 64

// Bus publishes models.BroadcastEvent values by topic.
type Bus struct {
	pubsub *gochannel.GoChannel
	closed atomic.Bool
}

// NewBus returns an open bus. A nil logger uses the zerolog adapter.
func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = NewLoggerAdapter()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            subscriberBuffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

// Publish sends ev to every current subscriber of topic.
func (b *Bus) Publish(topic string, ev models.BroadcastEvent) error {
	if b.closed.Load() {
		return ErrClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("topic", topic)
	msg.Metadata.Set("event_type", ev.Type)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.BroadcastEvents.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe returns a channel of events on topic. The channel is closed when
// ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan models.BroadcastEvent, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan models.BroadcastEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			msg.Ack()

			var ev models.BroadcastEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logging.Warn().Err(err).Str("topic", topic).Msg("Dropping undecodable broadcast event")
				continue
			}

			select {
			case out <- ev:
			default:
				logging.Warn().Str("topic", topic).Str("event_type", ev.Type).Msg("Subscriber lagging, dropping broadcast event")
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes every subscription channel.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}
