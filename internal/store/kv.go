// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Well-known keys of the persisted layout.
const (
	KeyUsers             = "users"
	KeyCurrentSessionUID = "current_session_uid"
	KeyDocumentsRoot     = "documents_root"
)

// ErrPersistence marks storage-layer failures. Callers must treat these as
// fatal to the operation in progress; they are never swallowed.
var ErrPersistence = errors.New("persistence failure")

// KV is a durable key-value store over a single SQLite table.
type KV struct {
	db *sql.DB
}

// NewKV wraps an opened (and migrated) database in a KV store.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the value stored under key, with ok reporting presence.
func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading key %q: %v", ErrPersistence, key, err)
	}
	return []byte(value), true, nil
}

// Set durably stores value under key, replacing any prior value.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMulti(ctx, map[string][]byte{key: value})
}

// SetMulti writes all entries in a single transaction. Either every entry
// is durable or none is; multi-key mutations never half-apply.
func (s *KV) SetMulti(ctx context.Context, entries map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for key, value := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(value), now)
		if err != nil {
			return fmt.Errorf("%w: writing key %q: %v", ErrPersistence, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", ErrPersistence, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: deleting key %q: %v", ErrPersistence, key, err)
	}
	return nil
}
