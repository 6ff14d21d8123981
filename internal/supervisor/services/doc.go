// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package services provides suture.Service wrappers for syncd components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern and identifies itself through fmt.Stringer:

  - RunnerService: components with a blocking Run(ctx) error, such as the
    realtime push client and the event forwarder
  - PollerService: components with Start(ctx)/Stop(), such as the staleness
    poller
  - WebSocketHubService: the relay hub's RunWithContext loop
  - HTTPServerService: an *http.Server with graceful shutdown

All wrappers return ctx.Err() after a requested shutdown so the supervisor
does not count it as a failure.
*/
package services
