// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler exposes the JSON API over the identity provider, profile
// service and admin workflow.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/questguild/guild-go/internal/identity"
	"github.com/questguild/guild-go/internal/middleware"
	"github.com/questguild/guild-go/internal/model"
	"github.com/questguild/guild-go/internal/profile"
	"github.com/questguild/guild-go/internal/workflow"
)

// FederatedExchanger is the federated sign-in collaborator the auth routes
// use. Nil disables the federated routes.
type FederatedExchanger interface {
	AuthURL(state string) string
	Profile(ctx context.Context, code string) (identity.FederatedProfile, error)
}

// Handler holds shared dependencies for all API routes.
type Handler struct {
	provider   *identity.Provider
	profiles   *profile.Service
	workflow   *workflow.Manager
	google     FederatedExchanger
	lockout    *middleware.LoginProtection
	superadmin func(email string) bool
	logger     *slog.Logger
}

// New creates the API handler. google may be nil when federated sign-in is
// not configured.
func New(provider *identity.Provider, profiles *profile.Service, wf *workflow.Manager,
	google FederatedExchanger, lockout *middleware.LoginProtection,
	isSuperadmin func(email string) bool, logger *slog.Logger) *Handler {
	return &Handler{
		provider:   provider,
		profiles:   profiles,
		workflow:   wf,
		google:     google,
		lockout:    lockout,
		superadmin: isSuperadmin,
		logger:     logger,
	}
}

// Routes builds the chi router for the API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.With(h.lockout.Middleware()).Post("/signin", h.SignIn)
		r.Post("/signout", h.SignOut)
		r.Get("/session", h.Session)
		if h.google != nil {
			r.Get("/google/url", h.GoogleURL)
			r.Post("/google", h.GoogleSignIn)
		}
	})

	r.Patch("/account", h.UpdateAccount)
	r.Put("/account/password", h.UpdatePassword)

	r.Route("/admin/requests", func(r chi.Router) {
		r.Post("/", h.SubmitRequest)
		r.Get("/", h.ListPending)
		r.Get("/status", h.RequestStatus)
		r.Post("/{uid}/approve", h.ApproveRequest)
		r.Post("/{uid}/deny", h.DenyRequest)
	})

	r.Get("/members", h.Members)

	return r
}

// Response is the standard API response wrapper.
type Response struct {
	Data any `json:"data,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeDomainError maps domain errors onto status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		WriteError(w, http.StatusConflict, "email_in_use", "an account with this email already exists")
	case errors.Is(err, identity.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, identity.ErrNoActiveUser):
		WriteError(w, http.StatusUnauthorized, "no_session", "sign in first")
	case errors.Is(err, identity.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, "user_not_found", "no such account")
	case errors.Is(err, identity.ErrMissingEmail):
		WriteError(w, http.StatusBadGateway, "missing_email", "the provider did not return an email")
	case errors.Is(err, identity.ErrProviderUnavailable):
		WriteError(w, http.StatusBadGateway, "provider_unavailable", "federated sign-in is unavailable")
	case errors.Is(err, workflow.ErrNotSuperadmin):
		WriteError(w, http.StatusForbidden, "forbidden", "only the superadmin may do this")
	default:
		h.logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

// currentUser fetches the active session user or writes a 401.
func (h *Handler) currentUser(w http.ResponseWriter) (*model.PublicUser, bool) {
	user := h.provider.CurrentUser()
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "no_session", "sign in first")
		return nil, false
	}
	return user, true
}

// requireAdmin checks the active session holds admin privileges.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*model.PublicUser, bool) {
	user, ok := h.currentUser(w)
	if !ok {
		return nil, false
	}
	if h.superadmin(user.Email) {
		return user, true
	}
	role, err := h.profiles.Role(r.Context(), user.UID)
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	if role != model.RoleAdmin {
		WriteError(w, http.StatusForbidden, "forbidden", "admin role required")
		return nil, false
	}
	return user, true
}
