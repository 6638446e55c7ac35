// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process cache backend.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	maxEntries int
	closed     atomic.Bool
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates a memory cache. maxEntries of 0 means unlimited.
func NewMemory(defaultTTL time.Duration, maxEntries int) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
	}
}

// Get retrieves a value, treating expired entries as misses.
func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		return nil, ErrMiss
	}

	// Hand out a copy so callers cannot mutate the cached value.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a value. When the entry bound is reached the whole map is
// dropped rather than evicted piecewise; entries are cheap to rebuild from
// the document store.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.entries = make(map[string]memoryEntry)
		}
	}
	c.entries[key] = memoryEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes a key.
func (c *Memory) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Close marks the cache closed and drops all entries.
func (c *Memory) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.mu.Lock()
		c.entries = nil
		c.mu.Unlock()
	}
	return nil
}
