// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schoolfin/syncd/internal/config"
	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("api_url", logging.RedactURL(cfg.API.BaseURL)).
		Bool("token_file", cfg.Auth.TokenFile != "").
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(cfg, cancel)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize syncd")
	}
	defer a.close()

	if !a.session.IsAuthenticated() {
		logging.Warn().Msg("No access token available, sync stays idle until a session starts")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	a.addServices(tree)
	logging.Info().Str("components", a.describe()).Msg("Services added to supervisor tree")

	if path := config.ConfigFile(); path != "" {
		if err := config.WatchConfigFile(path, reloadLogLevel); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("syncd stopped")
}

// reloadLogLevel applies a changed logging.level from the config file.
func reloadLogLevel() {
	cfg, err := config.Load()
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring invalid configuration change")
		return
	}
	logging.SetLevelString(cfg.Logging.Level)
	logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
}
