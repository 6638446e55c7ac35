// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that tees records into the events
// collection of the document store. Logs at WARN level and above are kept
// there for auditing; everything still flows through the wrapped handler.
package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/model"
)

// Event levels stored on event documents.
const (
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories stored on event documents.
const (
	EventCategoryAuth     = "auth"
	EventCategoryProfile  = "profile"
	EventCategoryWorkflow = "workflow"
	EventCategorySystem   = "system"
)

// EventLogHandler is a slog.Handler that wraps another handler and also
// writes WARN and ERROR level records to the events collection.
type EventLogHandler struct {
	inner slog.Handler
	docs  *docstore.Store
	level slog.Level
	attrs []slog.Attr
}

// NewEventLogHandler creates an EventLogHandler around the given handler.
// Records at WARN and above are written to both.
func NewEventLogHandler(inner slog.Handler, docs *docstore.Store) *EventLogHandler {
	return &EventLogHandler{
		inner: inner,
		docs:  docs,
		level: slog.LevelWarn,
	}
}

// NewEventLogHandlerWithLevel creates an EventLogHandler with a custom
// minimum level for the events collection.
func NewEventLogHandlerWithLevel(inner slog.Handler, docs *docstore.Store, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner: inner,
		docs:  docs,
		level: level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeEvent(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{
		inner: h.inner.WithAttrs(attrs),
		docs:  h.docs,
		level: h.level,
		attrs: merged,
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner: h.inner.WithGroup(name),
		docs:  h.docs,
		level: h.level,
		attrs: h.attrs,
	}
}

// writeEvent stores the record as an event document. A background context is
// used so the event lands even when the request context is cancelled.
func (h *EventLogHandler) writeEvent(r slog.Record) {
	metadata := map[string]any{}
	category := ""

	collect := func(a slog.Attr) bool {
		if a.Key == "category" {
			category = a.Value.String()
			return true
		}
		metadata[a.Key] = a.Value.String()
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if category == "" {
		category = inferCategory(r.Message)
	}

	_ = h.docs.SetDocument(context.Background(), model.CollectionEvents, uuid.NewString(), map[string]any{
		"level":     eventLevel(r.Level),
		"category":  category,
		"message":   r.Message,
		"metadata":  metadata,
		"createdAt": r.Time.UnixMilli(),
	}, false)
}

func eventLevel(level slog.Level) string {
	if level >= slog.LevelError {
		return EventLevelError
	}
	return EventLevelWarning
}

// inferCategory guesses a category from the message when no "category"
// attribute was logged.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "sign") || strings.Contains(msg, "auth") || strings.Contains(msg, "password"):
		return EventCategoryAuth
	case strings.Contains(msg, "profile"):
		return EventCategoryProfile
	case strings.Contains(msg, "admin") || strings.Contains(msg, "request"):
		return EventCategoryWorkflow
	default:
		return EventCategorySystem
	}
}
