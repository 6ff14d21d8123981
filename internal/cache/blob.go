// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package cache

import (
	"sync"
	"time"
)

// blobEntry is a node in the recency list.
type blobEntry struct {
	key       string
	value     []byte
	prev      *blobEntry
	next      *blobEntry
	expiresAt time.Time
}

// BlobCache is an LRU cache of byte slices with a TTL and a byte budget.
type BlobCache struct {
	mu sync.Mutex

	capacity int
	maxBytes int64
	ttl      time.Duration

	items map[string]*blobEntry
	bytes int64

	// sentinels; head.next is the most recently used entry
	head *blobEntry
	tail *blobEntry

	hits   int64
	misses int64

	now func() time.Time
}

// NewBlobCache creates a cache holding at most capacity entries and maxBytes
// bytes. Non-positive arguments select 64 entries, 16 MiB and one hour.
func NewBlobCache(capacity int, maxBytes int64, ttl time.Duration) *BlobCache {
	if capacity <= 0 {
		capacity = 64
	}
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &BlobCache{
		capacity: capacity,
		maxBytes: maxBytes,
		ttl:      ttl,
		items:    make(map[string]*blobEntry, capacity),
		head:     &blobEntry{},
		tail:     &blobEntry{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the blob for key and marks it most recently used.
func (c *BlobCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	return entry.value, true
}

// Add stores value under key. A blob larger than the whole byte budget is
// not cached.
func (c *BlobCache) Add(key string, value []byte) {
	size := int64(len(value))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if entry, exists := c.items[key]; exists {
		c.bytes += size - int64(len(entry.value))
		entry.value = value
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
	} else {
		entry := &blobEntry{key: key, value: value, expiresAt: expiresAt}
		c.addToFront(entry)
		c.items[key] = entry
		c.bytes += size
	}

	for len(c.items) > c.capacity || c.bytes > c.maxBytes {
		c.evictOldest()
	}
}

// Remove deletes key and reports whether it was present.
func (c *BlobCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Len returns the number of cached blobs, expired ones included.
func (c *BlobCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the number of cached bytes.
func (c *BlobCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *BlobCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*blobEntry, c.capacity)
	c.bytes = 0
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns hit and miss counts and the current entry count.
func (c *BlobCache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

func (c *BlobCache) addToFront(entry *blobEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *BlobCache) moveToFront(entry *blobEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *BlobCache) removeEntry(entry *blobEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
	c.bytes -= int64(len(entry.value))
}

func (c *BlobCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
