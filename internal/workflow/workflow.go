// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package workflow implements the admin privilege-escalation workflow:
// members submit a time-limited request, the superadmin approves or denies
// it, and role changes flow through the profile service.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/identity"
	"github.com/questguild/guild-go/internal/model"
	"github.com/questguild/guild-go/internal/profile"
)

// RequestTTL is how long a submitted request stays reviewable before it is
// reported as expired.
const RequestTTL = 24 * time.Hour

// ErrNotSuperadmin is returned when a non-superadmin tries to review
// requests.
var ErrNotSuperadmin = errors.New("only the superadmin may review admin requests")

// Outcome reports what submitting a request did.
type Outcome int

const (
	// OutcomeSubmitted means a new request was recorded.
	OutcomeSubmitted Outcome = iota

	// OutcomeAlreadyPending means an unexpired request already exists.
	OutcomeAlreadyPending

	// OutcomeAlreadyAdmin means the caller already holds the admin role.
	OutcomeAlreadyAdmin
)

// State is the review state of a uid's latest request.
type State int

const (
	StateNoRequest State = iota
	StatePending
	StateExpired
	StateApproved
	StateDenied
)

// Status describes a uid's latest request for display.
type Status struct {
	State     State
	HoursLeft int
	ExpiresAt time.Time
}

// Message renders the status as a user-facing line.
func (s Status) Message() string {
	switch s.State {
	case StatePending:
		return fmt.Sprintf("Pending admin approval (%dh left).", s.HoursLeft)
	case StateExpired:
		return "Previous request expired. You can submit a new one."
	case StateApproved:
		return "Approved. Sign out and sign in again to refresh your role."
	case StateDenied:
		return "Your last request was denied."
	default:
		return "No request submitted yet."
	}
}

// Manager runs the workflow over the admin_requests collection.
type Manager struct {
	docs       *docstore.Store
	profiles   *profile.Service
	superadmin func(email string) bool
	now        func() time.Time
}

// NewManager creates the workflow manager. isSuperadmin decides who may
// review requests, typically config.Config.IsSuperadmin.
func NewManager(docs *docstore.Store, profiles *profile.Service, isSuperadmin func(email string) bool) *Manager {
	return &Manager{
		docs:       docs,
		profiles:   profiles,
		superadmin: isSuperadmin,
		now:        time.Now,
	}
}

// Request submits an admin request for the user. A new request replaces any
// previous one for the same uid; while an unexpired request is pending no
// replacement is written.
func (m *Manager) Request(ctx context.Context, user *model.PublicUser) (Outcome, error) {
	if user == nil {
		return 0, identity.ErrNoActiveUser
	}

	if m.superadmin(user.Email) {
		return OutcomeAlreadyAdmin, nil
	}
	role, err := m.profiles.Role(ctx, user.UID)
	if err != nil {
		return 0, err
	}
	if role == model.RoleAdmin {
		return OutcomeAlreadyAdmin, nil
	}

	now := m.now()
	if existing, ok, err := m.requestFor(ctx, user.UID); err != nil {
		return 0, err
	} else if ok && existing.Status == model.RequestStatusPending && existing.ExpiresAt > now.UnixMilli() {
		return OutcomeAlreadyPending, nil
	}

	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Email
	}
	err = m.docs.SetDocument(ctx, model.CollectionAdminRequests, user.UID, map[string]any{
		"uid":         user.UID,
		"email":       user.Email,
		"displayName": displayName,
		"status":      model.RequestStatusPending,
		"createdAt":   now.UnixMilli(),
		"expiresAt":   now.Add(RequestTTL).UnixMilli(),
	}, false)
	if err != nil {
		return 0, err
	}

	if err := m.profiles.SetRole(ctx, user.UID, model.RolePendingAdmin); err != nil {
		return 0, err
	}
	return OutcomeSubmitted, nil
}

// Approve grants the admin role and marks the request approved. Expiry is
// not re-checked here: the superadmin's decision stands even on a request
// that has already expired.
func (m *Manager) Approve(ctx context.Context, actor *model.PublicUser, uid string) error {
	if err := m.authorize(actor); err != nil {
		return err
	}
	if err := m.profiles.SetRole(ctx, uid, model.RoleAdmin); err != nil {
		return err
	}
	return m.docs.UpdateDocument(ctx, model.CollectionAdminRequests, uid, map[string]any{
		"status": model.RequestStatusApproved,
	})
}

// Deny marks the request denied and resets the uid to the base role,
// whatever role it held before.
func (m *Manager) Deny(ctx context.Context, actor *model.PublicUser, uid string) error {
	if err := m.authorize(actor); err != nil {
		return err
	}
	if err := m.profiles.SetRole(ctx, uid, model.RoleUser); err != nil {
		return err
	}
	return m.docs.UpdateDocument(ctx, model.CollectionAdminRequests, uid, map[string]any{
		"status": model.RequestStatusDenied,
	})
}

// StatusFor reports the review state of the uid's latest request.
func (m *Manager) StatusFor(ctx context.Context, uid string) (Status, error) {
	req, ok, err := m.requestFor(ctx, uid)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{State: StateNoRequest}, nil
	}

	switch req.Status {
	case model.RequestStatusApproved:
		return Status{State: StateApproved}, nil
	case model.RequestStatusDenied:
		return Status{State: StateDenied}, nil
	}

	nowMs := m.now().UnixMilli()
	if req.ExpiresAt <= nowMs {
		return Status{State: StateExpired, ExpiresAt: time.UnixMilli(req.ExpiresAt)}, nil
	}
	remaining := req.ExpiresAt - nowMs
	const msPerHour = int64(time.Hour / time.Millisecond)
	return Status{
		State:     StatePending,
		HoursLeft: int((remaining + msPerHour - 1) / msPerHour),
		ExpiresAt: time.UnixMilli(req.ExpiresAt),
	}, nil
}

// Pending lists all pending requests, oldest first. Only the superadmin may
// call it.
func (m *Manager) Pending(ctx context.Context, actor *model.PublicUser) ([]model.AdminRequest, error) {
	if err := m.authorize(actor); err != nil {
		return nil, err
	}

	docs, err := m.docs.Query(ctx, model.CollectionAdminRequests,
		docstore.Where("status", docstore.OpEqual, model.RequestStatusPending))
	if err != nil {
		return nil, err
	}

	requests := make([]model.AdminRequest, 0, len(docs))
	for _, doc := range docs {
		var req model.AdminRequest
		if err := docstore.Decode(doc.Fields, &req); err != nil {
			return nil, fmt.Errorf("admin request %s: %w", doc.ID, err)
		}
		if req.UID == "" {
			req.UID = doc.ID
		}
		requests = append(requests, req)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt < requests[j].CreatedAt
	})
	return requests, nil
}

func (m *Manager) authorize(actor *model.PublicUser) error {
	if actor == nil {
		return identity.ErrNoActiveUser
	}
	if !m.superadmin(actor.Email) {
		return ErrNotSuperadmin
	}
	return nil
}

func (m *Manager) requestFor(ctx context.Context, uid string) (model.AdminRequest, bool, error) {
	fields, exists, err := m.docs.GetDocument(ctx, model.CollectionAdminRequests, uid)
	if err != nil || !exists {
		return model.AdminRequest{}, false, err
	}
	var req model.AdminRequest
	if err := docstore.Decode(fields, &req); err != nil {
		return model.AdminRequest{}, false, fmt.Errorf("admin request %s: %w", uid, err)
	}
	return req, true, nil
}
