// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/questguild/guild-go/internal/workflow"
)

// outcomeNames maps workflow outcomes to wire strings.
var outcomeNames = map[workflow.Outcome]string{
	workflow.OutcomeSubmitted:      "submitted",
	workflow.OutcomeAlreadyPending: "already_pending",
	workflow.OutcomeAlreadyAdmin:   "already_admin",
}

// stateNames maps request states to wire strings.
var stateNames = map[workflow.State]string{
	workflow.StateNoRequest: "none",
	workflow.StatePending:   "pending",
	workflow.StateExpired:   "expired",
	workflow.StateApproved:  "approved",
	workflow.StateDenied:    "denied",
}

// SubmitRequest handles POST /admin/requests: the signed-in user asks for
// the admin role.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}

	outcome, err := h.workflow.Request(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if outcome == workflow.OutcomeSubmitted {
		h.logger.Info("admin request submitted", "uid", user.UID)
	}
	WriteSuccess(w, map[string]string{"outcome": outcomeNames[outcome]})
}

type requestStatusResponse struct {
	State     string `json:"state"`
	HoursLeft int    `json:"hoursLeft,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	Message   string `json:"message"`
}

// RequestStatus handles GET /admin/requests/status for the signed-in user.
func (h *Handler) RequestStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}

	status, err := h.workflow.StatusFor(r.Context(), user.UID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := requestStatusResponse{
		State:     stateNames[status.State],
		HoursLeft: status.HoursLeft,
		Message:   status.Message(),
	}
	if !status.ExpiresAt.IsZero() {
		resp.ExpiresAt = status.ExpiresAt.UTC().Format(time.RFC3339)
	}
	WriteSuccess(w, resp)
}

// ListPending handles GET /admin/requests: the superadmin's review list.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}

	pending, err := h.workflow.Pending(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, pending)
}

// ApproveRequest handles POST /admin/requests/{uid}/approve.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}
	uid := chi.URLParam(r, "uid")

	if err := h.workflow.Approve(r.Context(), user, uid); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("admin request approved", "uid", uid, "by", user.UID)
	WriteSuccess(w, map[string]string{"uid": uid, "status": "approved"})
}

// DenyRequest handles POST /admin/requests/{uid}/deny.
func (h *Handler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}
	uid := chi.URLParam(r, "uid")

	if err := h.workflow.Deny(r.Context(), user, uid); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("admin request denied", "uid", uid, "by", user.UID)
	WriteSuccess(w, map[string]string{"uid": uid, "status": "denied"})
}
