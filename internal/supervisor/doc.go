// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package supervisor provides process supervision for syncd using suture v4.

# Overview

The supervisor tree organizes services into two layers for failure isolation:

	RootSupervisor ("syncd")
	├── SyncSupervisor ("sync-layer")
	│   ├── RunnerService ("realtime-client")
	│   └── PollerService ("staleness-poller")
	└── APISupervisor ("api-layer")
	    ├── WebSocketHubService ("relay-hub")
	    ├── RunnerService ("event-forwarder")
	    └── HTTPServerService ("http-server")

A crash of the status surface never interrupts the push connection or the
polling fallback, and the reverse.

The push client handles its own reconnects and never returns before its
context is canceled. Supervision only covers programming errors that make a
service return early.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}

	tree.AddSyncService(services.NewRunnerService("realtime-client", client))
	tree.AddSyncService(services.NewPollerService(poller))
	tree.AddAPIService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

# Configuration

TreeConfig controls restart behavior. Zero values fall back to suture's
defaults: 5 failures, 30 second decay, 15 second backoff and a 10 second
shutdown timeout per service.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
	}

# See Also

  - internal/supervisor/services: suture.Service wrappers
  - github.com/thejerf/suture/v4
*/
package supervisor
