// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic sweep over the admin_requests
// collection. The sweep only reports: expired requests are logged for the
// superadmin, never mutated, so a late approval still works.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/model"
)

// Scheduler owns the cron instance and the sweep job.
type Scheduler struct {
	docs   *docstore.Store
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// New creates a scheduler over the document store.
func New(docs *docstore.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		docs:   docs,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Start registers the hourly sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.SweepExpiredRequests(context.Background()); err != nil {
			s.logger.Error("admin request sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// SweepExpiredRequests logs every pending request whose review window has
// passed. Request documents are left as they are.
func (s *Scheduler) SweepExpiredRequests(ctx context.Context) error {
	docs, err := s.docs.Query(ctx, model.CollectionAdminRequests,
		docstore.Where("status", docstore.OpEqual, model.RequestStatusPending))
	if err != nil {
		return err
	}

	nowMs := s.now().UnixMilli()
	expired := 0
	for _, doc := range docs {
		var req model.AdminRequest
		if err := docstore.Decode(doc.Fields, &req); err != nil {
			s.logger.Warn("undecodable admin request", "id", doc.ID, "error", err)
			continue
		}
		if req.ExpiresAt > nowMs {
			continue
		}
		expired++
		s.logger.Warn("admin request expired without review",
			"uid", doc.ID,
			"email", req.Email,
			"expired_at", time.UnixMilli(req.ExpiresAt).Format(time.RFC3339),
		)
	}

	if expired > 0 {
		s.logger.Info("admin request sweep finished", "pending", len(docs), "expired", expired)
	}
	return nil
}
