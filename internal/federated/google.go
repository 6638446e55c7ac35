// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package federated performs the network half of federated sign-in: the
// OAuth code exchange and the userinfo fetch. It produces the profile the
// identity provider consumes and does no session or registry work itself.
package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/questguild/guild-go/internal/identity"
)

const defaultUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Google exchanges authorization codes with Google and fetches the
// account's OpenID profile.
type Google struct {
	conf        *oauth2.Config
	userinfoURL string
}

// NewGoogle configures the Google sign-in collaborator.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: defaultUserinfoURL,
	}
}

// NewGoogleWithEndpoints is NewGoogle with the provider endpoints swapped
// out. Used by tests to point at a local server.
func NewGoogleWithEndpoints(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, userinfoURL string) *Google {
	g := NewGoogle(clientID, clientSecret, redirectURL)
	g.conf.Endpoint = endpoint
	g.userinfoURL = userinfoURL
	return g
}

// AuthURL returns the URL the UI sends the user to for consent.
func (g *Google) AuthURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Profile exchanges the authorization code and fetches the account
// profile. Both round trips honor ctx for cancellation and timeout.
// Provider-side failures wrap identity.ErrProviderUnavailable.
func (g *Google) Profile(ctx context.Context, code string) (identity.FederatedProfile, error) {
	var none identity.FederatedProfile

	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return none, fmt.Errorf("%w: token exchange: %v", identity.ErrProviderUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return none, fmt.Errorf("building userinfo request: %w", err)
	}

	resp, err := g.conf.Client(ctx, token).Do(req)
	if err != nil {
		return none, fmt.Errorf("%w: profile request: %v", identity.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return none, fmt.Errorf("%w: profile request returned %s", identity.ErrProviderUnavailable, resp.Status)
	}

	var payload struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return none, fmt.Errorf("%w: decoding profile: %v", identity.ErrProviderUnavailable, err)
	}

	return identity.FederatedProfile{
		Email:   payload.Email,
		Name:    payload.Name,
		Picture: payload.Picture,
	}, nil
}
