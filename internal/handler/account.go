// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/questguild/guild-go/internal/identity"
	"github.com/questguild/guild-go/internal/model"
)

type updateAccountRequest struct {
	DisplayName   *string `json:"displayName"`
	PhotoURL      *string `json:"photoURL"`
	Goal          *string `json:"goal"`
	Sponsor       *bool   `json:"sponsor"`
	Notifications *bool   `json:"notifications"`
}

// UpdateAccount handles PATCH /account: display name and photo go to the
// identity registry, preferences to the profile document.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}

	var req updateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.provider.UpdateProfile(r.Context(), user, identity.ProfileChanges{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	current, _, err := h.profiles.Hydrate(r.Context(), updated.UID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	prefs := current.Prefs
	prefs.DisplayName = updated.DisplayName
	if req.Goal != nil {
		prefs.Goal = *req.Goal
	}
	if req.Sponsor != nil {
		prefs.Sponsor = *req.Sponsor
	}
	if req.Notifications != nil {
		prefs.Notifications = *req.Notifications
	}

	if err := h.profiles.Save(r.Context(), updated, prefs); err != nil {
		h.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, updated)
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

// UpdatePassword handles PUT /account/password.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "password is required")
		return
	}

	if err := h.provider.UpdatePassword(r.Context(), user, req.Password); err != nil {
		h.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"updated": true})
}

// Members handles GET /members: the admin member directory.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	members, err := h.provider.Members(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if members == nil {
		members = []*model.PublicUser{}
	}
	WriteSuccess(w, members)
}
