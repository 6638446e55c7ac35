// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Document store collection names.
const (
	CollectionProfiles      = "profiles"
	CollectionAdminRequests = "admin_requests"
	CollectionEvents        = "events"
)

// Admin request statuses.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusDenied   = "denied"
)

// Prefs are the user-editable preferences stored on the profile document.
type Prefs struct {
	DisplayName   string `json:"displayName,omitempty"`
	Goal          string `json:"goal,omitempty"`
	Sponsor       bool   `json:"sponsor,omitempty"`
	Notifications bool   `json:"notifications,omitempty"`
}

// Profile is the decoded shape of a profiles/{uid} document.
type Profile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Prefs       Prefs  `json:"prefs"`
	CreatedAt   int64  `json:"createdAt,omitempty"` // unix milliseconds
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// AdminRequest is the decoded shape of an admin_requests/{uid} document.
// At most one exists per uid; a new request replaces the previous one.
type AdminRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"` // unix milliseconds
	ExpiresAt   int64  `json:"expiresAt"` // always CreatedAt + 24h
}
