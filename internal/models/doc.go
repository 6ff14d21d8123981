// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package models defines the wire and domain types shared by syncd packages.

Push protocol (server → client, JSON text frames):

  - Envelope: tagged union keyed by Type, with UpdateType / ManagementType /
    NotificationType sub-tags and an epoch-millisecond Timestamp
  - PingMessage: the only client → server frame

Backend REST resources:

  - UserProfile: GET /v1/users/me
  - School: GET /v1/schools/{id}

Local broadcast:

  - BroadcastEvent: {type, id, data, timestamp}, published on the in-process
    bus under the Topic* names

Status surface:

  - APIResponse, APIError, SyncStatus
*/
package models
