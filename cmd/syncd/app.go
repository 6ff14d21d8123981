// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/schoolfin/syncd/internal/api"
	"github.com/schoolfin/syncd/internal/backend"
	"github.com/schoolfin/syncd/internal/cache"
	"github.com/schoolfin/syncd/internal/config"
	"github.com/schoolfin/syncd/internal/events"
	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/models"
	"github.com/schoolfin/syncd/internal/realtime"
	"github.com/schoolfin/syncd/internal/refresh"
	"github.com/schoolfin/syncd/internal/session"
	"github.com/schoolfin/syncd/internal/store"
	"github.com/schoolfin/syncd/internal/supervisor"
	"github.com/schoolfin/syncd/internal/supervisor/services"
	ws "github.com/schoolfin/syncd/internal/websocket"
)

// app holds every long-lived component.
type app struct {
	cfg     *config.Config
	session *session.Session
	api     *backend.CircuitBreakerClient
	users   *store.UserStore
	schools *store.SchoolStore
	blobs   *cache.BlobCache // nil when the blob cache is disabled
	bus     *events.Bus
	syncer  *refresh.Syncer
	client  *realtime.Client // nil when realtime is disabled
	poller  *refresh.Poller  // nil when polling is disabled
	hub     *ws.Hub
	server  *http.Server // nil when the status surface is disabled

	// shutdown is called after a forced logout when exit_on_logout is set.
	shutdown context.CancelFunc
}

// newApp builds the component graph for cfg. Nothing is started.
func newApp(cfg *config.Config, shutdown context.CancelFunc) (*app, error) {
	if cfg.Realtime.Enabled {
		if _, ok := realtime.BuildURL(cfg.API.BaseURL, cfg.Realtime.Path, "probe"); !ok {
			return nil, fmt.Errorf("cannot derive push endpoint from api.base_url %q", logging.RedactURL(cfg.API.BaseURL))
		}
	}

	sessCfg := session.Config{
		AccessToken: cfg.Auth.AccessToken,
		UserID:      cfg.Auth.UserID,
	}
	if cfg.Auth.TokenFile != "" {
		sessCfg.TokenSource = cfg.Auth.ResolveToken
	}
	sess := session.New(sessCfg)

	restClient := backend.NewClient(backend.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	}, sess)

	a := &app{
		cfg:      cfg,
		session:  sess,
		api:      backend.NewCircuitBreakerClient(restClient, cfg.API.Breaker),
		users:    store.NewUserStore(),
		schools:  store.NewSchoolStore(),
		bus:      events.NewBus(events.NewLoggerAdapter()),
		hub:      ws.NewHub(),
		shutdown: shutdown,
	}

	if cfg.API.Blobs.Entries > 0 {
		a.blobs = cache.NewBlobCache(cfg.API.Blobs.Entries, cfg.API.Blobs.MaxBytes, cfg.API.Blobs.TTL)
	}

	a.syncer = refresh.NewSyncer(a.api, sess, a.users, a.schools, refresh.Config{
		ConnectedInterval:    cfg.Polling.ConnectedInterval,
		DisconnectedInterval: cfg.Polling.DisconnectedInterval,
		Blobs:                a.blobs,
	})

	if cfg.Realtime.Enabled {
		a.client = realtime.NewClient(realtime.Config{
			BaseURL:              cfg.API.BaseURL,
			Path:                 cfg.Realtime.Path,
			MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
			ReconnectBaseDelay:   cfg.Realtime.ReconnectBaseDelay,
			ReconnectMaxDelay:    cfg.Realtime.ReconnectMaxDelay,
			PingInterval:         cfg.Realtime.PingInterval,
			HandshakeTimeout:     cfg.Realtime.HandshakeTimeout,
			WriteTimeout:         cfg.Realtime.WriteTimeout,
			ReadLimit:            cfg.Realtime.ReadLimit,
		}, sess, a.syncer, a.bus)
		a.syncer.SetConnectionStatus(a.client.IsConnected)
	} else {
		logging.Info().Msg("Realtime updates disabled, relying on polling")
	}

	if cfg.Polling.Enabled {
		a.poller = refresh.NewPoller(a.syncer, cfg.Polling.TickInterval)
	}

	if cfg.Server.Enabled {
		a.server = &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           a.router().SetupChi(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	a.installSessionHooks()
	return a, nil
}

func (a *app) router() *api.Router {
	// a typed nil *realtime.Client must not reach the handler as non-nil
	var push api.PushStatus
	if a.client != nil {
		push = a.client
	}
	handler := api.NewHandler(a.session, a.syncer, push, a.hub)
	return api.NewRouter(handler, a.hub, api.ChiMiddlewareConfigFromServer(&a.cfg.Server))
}

// installSessionHooks wires logout and login transitions to the components.
func (a *app) installSessionHooks() {
	a.session.OnLogout(a.onLogout)
	a.session.OnLogin(func(string, string) {
		if a.client != nil {
			a.client.Retrigger()
		}
	})
}

func (a *app) onLogout(reason, userID string) {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			logging.Debug().Err(err).Msg("Closing push connection after logout")
		}
	}
	a.users.Clear()
	a.schools.Clear()
	if a.blobs != nil {
		a.blobs.Clear()
	}

	ev := models.BroadcastEvent{
		Type:      reason,
		ID:        userID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := a.bus.Publish(models.TopicSessionLogout, ev); err != nil {
		logging.Warn().Err(err).Msg("Failed to publish session logout")
	}

	if a.cfg.Auth.ExitOnLogout && a.shutdown != nil {
		logging.Info().Str("reason", reason).Msg("Exiting after forced logout")
		a.shutdown()
	}
}

// addServices registers every runnable component with tree.
func (a *app) addServices(tree *supervisor.SupervisorTree) {
	if a.client != nil {
		tree.AddSyncService(services.NewRunnerService(a.client.String(), a.client))
	}
	if a.poller != nil {
		tree.AddSyncService(services.NewPollerService(a.poller))
	}

	tree.AddAPIService(services.NewWebSocketHubService(a.hub))
	forwarder := events.NewForwarder(a.bus, a.hub)
	tree.AddAPIService(services.NewRunnerService(forwarder.String(), forwarder))

	if a.server != nil {
		tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout))
	}
}

// close releases resources that outlive the supervisor tree.
func (a *app) close() {
	if err := a.bus.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing event bus")
	}
}

func (a *app) describe() string {
	return fmt.Sprintf("realtime=%t polling=%t server=%t blobs=%t", a.client != nil, a.poller != nil, a.server != nil, a.blobs != nil)
}
