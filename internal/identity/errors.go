// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package identity

import "errors"

// Typed failures surfaced by identity operations. Callers translate these
// into user-visible messaging; the provider itself never retries.
var (
	// ErrEmailInUse is returned by sign-up when another record already
	// holds the email (case-insensitively).
	ErrEmailInUse = errors.New("email already in use")

	// ErrInvalidCredentials is returned by password sign-in when no record
	// matches both the email and the password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned when an operation references a uid that
	// is no longer in the registry.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoActiveUser is returned when an operation requires a user and
	// none was given.
	ErrNoActiveUser = errors.New("no active user")

	// ErrMissingEmail is returned by federated sign-in when the provider
	// profile carries no email.
	ErrMissingEmail = errors.New("account email was not returned")

	// ErrProviderUnavailable wraps failures of the federated provider's
	// token exchange or profile fetch.
	ErrProviderUnavailable = errors.New("federated provider unavailable")
)
