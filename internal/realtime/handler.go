// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
	"github.com/schoolfin/syncd/internal/session"
)

// HandleMessage classifies one inbound frame and runs its side effect. It
// never panics and never returns an error: malformed or irrelevant frames are
// logged and dropped. Frames arriving after the session ended are ignored.
//
//nolint:gocyclo // one case per message type
func (c *Client) HandleMessage(ctx context.Context, raw []byte) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)

	defer func() {
		if r := recover(); r != nil {
			metrics.PushMessagesDropped.WithLabelValues("panic").Inc()
			log.Error().Str("panic", fmt.Sprint(r)).Msg("Recovered from panic in push message handler")
		}
	}()

	if !c.session.IsAuthenticated() {
		metrics.PushMessagesDropped.WithLabelValues("unauthenticated").Inc()
		log.Debug().Msg("Ignoring push message, session ended")
		return
	}

	env, err := models.ParseEnvelope(raw)
	if err != nil {
		metrics.PushMessagesDropped.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("Dropping malformed push message")
		return
	}
	metrics.PushMessagesReceived.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case models.MessageTypeConnectionEstablished:
		log.Info().Str("user_id", env.UserID.String()).Msg("Push connection established")

	case models.MessageTypeUserUpdate:
		c.handleUserUpdate(ctx, env)

	case models.MessageTypeNotification, models.MessageTypeUserManagement, models.MessageTypeSchoolManagement:
		c.broadcast(ctx, env)

	case models.MessageTypePong:
		c.handlePong(ctx)

	default:
		metrics.PushMessagesDropped.WithLabelValues("unknown_type").Inc()
		log.Debug().Str("type", env.Type).Msg("Ignoring unknown push message type")
	}
}

func (c *Client) handleUserUpdate(ctx context.Context, env *models.Envelope) {
	log := logging.Ctx(ctx)

	local := c.refresher.LocalUserID()
	if local == "" || env.UserID.String() != local {
		metrics.PushMessagesDropped.WithLabelValues("foreign_entity").Inc()
		log.Debug().
			Str("update_type", env.UpdateType).
			Str("user_id", env.UserID.String()).
			Msg("Ignoring user update for another user")
		return
	}

	switch env.UpdateType {
	case models.UpdateProfileUpdated, models.UpdateAvatarUpdated, models.UpdateSignatureUpdated:
		log.Info().Str("update_type", env.UpdateType).Msg("Refreshing profile after push update")
		if err := c.refresher.RefreshUser(ctx); err != nil {
			log.Warn().Err(err).Str("update_type", env.UpdateType).Msg("Profile refresh failed")
		}

	case models.UpdatePasswordChanged:
		log.Info().Msg("Password changed, new credentials required next session")

	case models.UpdateUserDeactivated:
		log.Warn().Msg("Account deactivated, logging out")
		c.session.ForceLogout(session.ReasonUserDeactivated)

	default:
		log.Debug().Str("update_type", env.UpdateType).Msg("Ignoring unknown user update type")
	}
}

func (c *Client) broadcast(ctx context.Context, env *models.Envelope) {
	log := logging.Ctx(ctx)
	topic := models.BroadcastTopicFor(env.Type)
	ev := models.NewBroadcastEvent(env)

	if c.publisher == nil {
		log.Debug().Str("topic", topic).Str("event_type", ev.Type).Msg("No publisher, broadcast dropped")
		return
	}
	if err := c.publisher.Publish(topic, ev); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish broadcast event")
		return
	}
	log.Debug().Str("topic", topic).Str("event_type", ev.Type).Str("id", ev.ID).Msg("Broadcast event published")
}

func (c *Client) handlePong(ctx context.Context) {
	sent := c.lastPing.Load()
	if sent == 0 {
		logging.Ctx(ctx).Debug().Msg("Pong without outstanding ping")
		return
	}

	rtt := c.now().Sub(time.UnixMilli(sent))
	if rtt < 0 {
		rtt = 0
	}
	c.lastRTT.Store(int64(rtt))
	metrics.RecordPingRTT(rtt)
	logging.Ctx(ctx).Debug().Dur("rtt", rtt).Msg("Pong received")
}
