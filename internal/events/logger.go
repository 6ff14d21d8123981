// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/schoolfin/syncd/internal/logging"
)

// zerologAdapter routes watermill's internal logging through zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by the global
// logger, tagged component=events.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &zerologAdapter{logger: logging.WithComponent("events")}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(a.logger.Error().Err(err), fields).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	withFields(a.logger.Info(), fields).Msg(msg)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(a.logger.Debug(), fields).Msg(msg)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(a.logger.Trace(), fields).Msg(msg)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := a.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &zerologAdapter{logger: ctx.Logger()}
}

func withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
