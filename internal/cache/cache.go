// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the read-through cache used in front of the
// document store: a memory backend by default, Redis when configured.
package cache

import (
	"context"
	"time"
)

// Cache is the interface both backends implement. Values are opaque bytes;
// implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value, or ErrMiss when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Error is the error type for cache operations.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrMiss indicates the key was not found or has expired.
	ErrMiss Error = "cache miss"

	// ErrClosed indicates the cache has been closed.
	ErrClosed Error = "cache closed"
)

// Config selects and sizes a backend.
type Config struct {
	// RedisURL switches to the Redis backend when non-empty.
	RedisURL string

	// Prefix is prepended to every Redis key.
	Prefix string

	// DefaultTTL applies when Set receives a zero ttl.
	DefaultTTL time.Duration

	// MaxEntries bounds the memory backend (0 = unlimited).
	MaxEntries int
}

// New builds the backend the config asks for.
func New(cfg Config) (Cache, error) {
	if cfg.RedisURL != "" {
		return NewRedis(cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
	}
	return NewMemory(cfg.DefaultTTL, cfg.MaxEntries), nil
}
