// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package cache provides a bounded in-memory cache for avatar and logo blobs.

Blobs are addressed by their URN, so an entry never goes stale in content;
the TTL only bounds how long an unused image is kept. The cache evicts the
least recently used entry once either the entry or the byte budget is
exceeded.

Usage Example:

	blobs := cache.NewBlobCache(64, 16<<20, time.Hour)

	if data, ok := blobs.Get(urn); ok {
	    return data, nil
	}
	data, err := api.GetUserAvatar(ctx, urn)
	if err == nil {
	    blobs.Add(urn, data)
	}

Cached slices are shared and must not be modified by callers.

Thread Safety:

BlobCache is safe for concurrent use. Every operation takes a single mutex;
the list is updated on reads too, so Get holds the write lock.
*/
package cache
