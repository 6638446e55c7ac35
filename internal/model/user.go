// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared across the local backend:
// user records, public user projections, profile documents and admin
// requests.
package model

import "strings"

// User roles as stored on the profile document.
const (
	RoleUser         = "user"
	RolePendingAdmin = "pending_admin"
	RoleAdmin        = "admin"
)

// ProviderGoogle tags records created through Google federated sign-in.
const ProviderGoogle = "google"

// UserRecord is a full account record as persisted in the user registry.
// Owned exclusively by the identity provider; the password hash must never
// leave it.
type UserRecord struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"` // empty for federated-only accounts
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoURL"`
	Provider     string `json:"provider,omitempty"`
}

// Public returns the projection of the record that is safe to hand to
// callers: everything except credential material.
func (r *UserRecord) Public() *PublicUser {
	if r == nil {
		return nil
	}
	return &PublicUser{
		UID:         r.UID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		PhotoURL:    r.PhotoURL,
	}
}

// EmailMatches reports whether the record's email equals the given one,
// ignoring case. Email uniqueness in the registry is case-insensitive.
func (r *UserRecord) EmailMatches(email string) bool {
	return strings.EqualFold(r.Email, email)
}

// PublicUser is the subset of a UserRecord exposed to the UI layer and to
// listener callbacks.
type PublicUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}
