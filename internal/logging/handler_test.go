// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/model"
	"github.com/questguild/guild-go/internal/store"
)

func testDocs(t *testing.T) *docstore.Store {
	t.Helper()

	db, err := store.NewDB(t.TempDir() + "/guild.db")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return docstore.New(store.NewKV(db))
}

func allEvents(t *testing.T, docs *docstore.Store) []docstore.Document {
	t.Helper()
	events, err := docs.Query(context.Background(), model.CollectionEvents)
	if err != nil {
		t.Fatalf("Query events: %v", err)
	}
	return events
}

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func TestEventLogHandler_ErrorLevel(t *testing.T) {
	docs := testDocs(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, docs))

	logger.Error("database connection failed", "host", "localhost")

	events := allEvents(t, docs)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Fields["level"] != EventLevelError {
		t.Errorf("level = %v, want %q", events[0].Fields["level"], EventLevelError)
	}
	if events[0].Fields["message"] != "database connection failed" {
		t.Errorf("message = %v", events[0].Fields["message"])
	}
}

func TestEventLogHandler_WarnLevel(t *testing.T) {
	docs := testDocs(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, docs))

	logger.Warn("slow query detected")

	events := allEvents(t, docs)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Fields["level"] != EventLevelWarning {
		t.Errorf("level = %v, want %q", events[0].Fields["level"], EventLevelWarning)
	}
}

func TestEventLogHandler_InfoNotCaptured(t *testing.T) {
	docs := testDocs(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, docs))

	logger.Info("server started", "port", 8787)
	logger.Debug("processing request")

	if events := allEvents(t, docs); len(events) != 0 {
		t.Errorf("expected 0 events below WARN, got %d", len(events))
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	docs := testDocs(t)
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, docs, slog.LevelInfo))

	logger.Info("server started")

	if events := allEvents(t, docs); len(events) != 1 {
		t.Errorf("expected 1 event with INFO threshold, got %d", len(events))
	}
}

func TestEventLogHandler_CategoryInference(t *testing.T) {
	testCases := []struct {
		message  string
		category string
	}{
		{"sign-in rejected", EventCategoryAuth},
		{"password update failed", EventCategoryAuth},
		{"profile save failed", EventCategoryProfile},
		{"admin request sweep failed", EventCategoryWorkflow},
		{"unknown failure occurred", EventCategorySystem},
	}

	for _, tc := range testCases {
		docs := testDocs(t)
		logger := slog.New(NewEventLogHandler(discardHandler{}, docs))

		logger.Error(tc.message)

		events := allEvents(t, docs)
		if len(events) != 1 {
			t.Errorf("message %q: expected 1 event, got %d", tc.message, len(events))
			continue
		}
		if events[0].Fields["category"] != tc.category {
			t.Errorf("message %q: category = %v, want %q", tc.message, events[0].Fields["category"], tc.category)
		}
	}
}

func TestEventLogHandler_ExplicitCategory(t *testing.T) {
	docs := testDocs(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, docs))

	logger.Error("something happened", "category", EventCategoryWorkflow)

	events := allEvents(t, docs)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Fields["category"] != EventCategoryWorkflow {
		t.Errorf("category = %v, explicit category should win", events[0].Fields["category"])
	}
}

func TestEventLogHandler_WithAttrsFlowIntoMetadata(t *testing.T) {
	docs := testDocs(t)
	handler := NewEventLogHandler(discardHandler{}, docs).WithAttrs([]slog.Attr{
		slog.String("service", "guildd"),
	})
	logger := slog.New(handler)

	logger.Error("service error", "uid", "u1")

	events := allEvents(t, docs)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	metadata, ok := events[0].Fields["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata = %T, want map", events[0].Fields["metadata"])
	}
	if metadata["service"] != "guildd" {
		t.Errorf("metadata[service] = %v, accumulated attrs should be stored", metadata["service"])
	}
	if metadata["uid"] != "u1" {
		t.Errorf("metadata[uid] = %v", metadata["uid"])
	}
}

func TestEventLogHandler_MultipleEvents(t *testing.T) {
	docs := testDocs(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, docs))

	logger.Error("error 1")
	logger.Warn("warning 1")
	logger.Error("error 2")
	logger.Info("info 1")

	events := allEvents(t, docs)
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}

	seen := map[string]bool{}
	for _, e := range events {
		id := e.ID
		if seen[id] {
			t.Errorf("duplicate event id %q", id)
		}
		seen[id] = true
	}
}
