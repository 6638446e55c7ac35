// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/questguild/guild-go/internal/identity"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "email and password are required")
		return
	}

	user, err := h.provider.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.profiles.Ensure(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("account created", "uid", user.UID)
	WriteSuccess(w, user)
}

// SignIn handles POST /auth/signin. Failed attempts count toward the
// account lockout; a locked account is rejected before credentials are
// checked.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if locked, remaining := h.lockout.IsAccountLocked(req.Email); locked {
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("account temporarily locked, try again in %s", remaining.Round(time.Second)))
		return
	}

	user, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			if nowLocked, duration := h.lockout.RecordFailedAttempt(req.Email); nowLocked {
				h.logger.Warn("sign-in lockout engaged", "email", req.Email, "duration", duration)
			}
		}
		h.writeDomainError(w, err)
		return
	}

	h.lockout.RecordSuccessfulLogin(req.Email)
	if err := h.profiles.Ensure(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, user)
}

// SignOut handles POST /auth/signout.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.SignOut(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"signedOut": true})
}

// Session handles GET /auth/session. The data field is null when nobody is
// signed in.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.provider.CurrentUser())
}

// GoogleURL handles GET /auth/google/url.
func (h *Handler) GoogleURL(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	WriteSuccess(w, map[string]string{"url": h.google.AuthURL(state)})
}

type googleSignInRequest struct {
	Code string `json:"code"`
}

// GoogleSignIn handles POST /auth/google: exchanges the authorization code,
// fetches the federated profile and signs the account in.
func (h *Handler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleSignInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "code is required")
		return
	}

	fp, err := h.google.Profile(r.Context(), req.Code)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	user, err := h.provider.SignInFederated(r.Context(), fp)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.profiles.Ensure(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, user)
}
