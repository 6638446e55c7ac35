// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package docstore emulates a document database over the key-value store.
// The whole database is one root structure of shape
// {collection: {docID: fields}} serialized under a single KV key.
//
// Every operation reads the full root, mutates it in memory and writes it
// back. Interleaved read-modify-write cycles would silently drop updates,
// so all operations serialize on a per-store mutex; the store is the single
// writer for its root key.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/questguild/guild-go/internal/store"
)

// OpEqual is the only filter operator the emulator supports.
const OpEqual = "=="

// Document is a query result: the document id and a snapshot of its fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter matches documents whose field deep-equals value. Values compare
// post-JSON-decoding, so numbers are float64 and nested values are
// map[string]any / []any.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Where builds a filter, mirroring the query API the UI layer was written
// against.
func Where(field, op string, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type root map[string]map[string]map[string]any

// Store is the document-store emulator.
type Store struct {
	kv *store.KV
	mu sync.Mutex
}

// New creates a document store persisting through the given KV store.
func New(kv *store.KV) *Store {
	return &Store{kv: kv}
}

// SetDocument writes the document id in collection. With merge false the
// document becomes exactly fields; with merge true fields shallow-merge
// over the existing document (a missing document merges over nothing).
// The collection is created if absent.
func (s *Store) SetDocument(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load(ctx)
	if err != nil {
		return err
	}

	docs := r[collection]
	if docs == nil {
		docs = make(map[string]map[string]any)
		r[collection] = docs
	}

	if merge {
		docs[id] = mergeFields(docs[id], fields)
	} else {
		docs[id] = mergeFields(nil, fields)
	}

	return s.save(ctx, r)
}

// GetDocument returns a snapshot of the document's fields and whether it
// exists. The snapshot is decoupled from store state; mutating it has no
// effect.
func (s *Store) GetDocument(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load(ctx)
	if err != nil {
		return nil, false, err
	}

	fields, ok := r[collection][id]
	if !ok {
		return nil, false, nil
	}
	return fields, true, nil
}

// UpdateDocument shallow-merges partial into the document. If the document
// does not exist it is created with only the merged fields. This
// upsert-on-update is looser than typical document databases and is kept
// deliberately: callers of the emulator depend on it.
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, partial map[string]any) error {
	return s.SetDocument(ctx, collection, id, partial, true)
}

// Query returns every document in collection matching all filters. Result
// order follows map iteration and carries no guarantee.
func (s *Store) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	for _, f := range filters {
		if f.Op != OpEqual {
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var out []Document
	for id, fields := range r[collection] {
		if matchesAll(fields, filters) {
			out = append(out, Document{ID: id, Fields: fields})
		}
	}
	return out, nil
}

// load reads and decodes the root structure. An absent root yields the
// empty layout with the two well-known collections.
func (s *Store) load(ctx context.Context) (root, error) {
	raw, ok, err := s.kv.Get(ctx, store.KeyDocumentsRoot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return root{
			"profiles":       {},
			"admin_requests": {},
		}, nil
	}

	var r root
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: decoding documents root: %v", store.ErrPersistence, err)
	}
	return r, nil
}

func (s *Store) save(ctx context.Context, r root) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encoding documents root: %v", store.ErrPersistence, err)
	}
	return s.kv.Set(ctx, store.KeyDocumentsRoot, raw)
}

func mergeFields(current, partial map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(partial))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Decode unmarshals a document's fields into a typed value through a JSON
// round trip.
func Decode(fields map[string]any, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

func matchesAll(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}
