// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package identity implements the local identity provider: a user registry
// and a single process-wide session persisted through the key-value store,
// with listener-based propagation of session changes.
//
// The provider is an explicit object; it owns all of its state and holds no
// package-level globals. All operations are safe for concurrent use.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/questguild/guild-go/internal/auth"
	"github.com/questguild/guild-go/internal/model"
	"github.com/questguild/guild-go/internal/store"
)

// FederatedProfile is what the federated sign-in collaborator supplies
// after the OAuth exchange. The provider performs no network I/O itself.
type FederatedProfile struct {
	Email   string
	Name    string
	Picture string
}

// Listener receives the current public user after each session change, and
// nil after sign-out. Listeners fire synchronously in registration order.
type Listener func(*model.PublicUser)

type listenerEntry struct {
	id int
	fn Listener
}

// Provider is the identity provider.
type Provider struct {
	kv *store.KV

	mu        sync.Mutex
	current   *model.PublicUser
	listeners []listenerEntry
	nextID    int
	queue     []*model.PublicUser

	draining atomic.Bool
}

// New creates a provider backed by the given KV store. Call Bootstrap once
// at process start to restore a persisted session.
func New(kv *store.KV) *Provider {
	return &Provider{kv: kv}
}

// Bootstrap restores the session from the persisted current-uid pointer. If
// the pointer matches a registry record the session becomes that user's
// public projection; otherwise the session stays empty. It fires no
// notifications; subscribers get the restored value on subscribe.
func (p *Provider) Bootstrap(ctx context.Context) error {
	users, err := p.loadUsers(ctx)
	if err != nil {
		return err
	}

	raw, ok, err := p.kv.Get(ctx, store.KeyCurrentSessionUID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	if !ok {
		return nil
	}

	var uid string
	if err := json.Unmarshal(raw, &uid); err != nil {
		return fmt.Errorf("decoding session pointer: %w", err)
	}
	for i := range users {
		if users[i].UID == uid {
			p.current = users[i].Public()
			break
		}
	}
	return nil
}

// Subscribe registers a listener and immediately invokes it with the
// current user (or nil). The returned function removes the listener.
func (p *Provider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn})
	snapshot := copyUser(p.current)
	p.mu.Unlock()

	fn(snapshot)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, entry := range p.listeners {
			if entry.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// CurrentUser returns the session's public user projection, or nil when
// signed out.
func (p *Provider) CurrentUser() *model.PublicUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyUser(p.current)
}

// SignUp creates an account with a freshly generated uid, persists it, sets
// it as the current session and notifies listeners.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*model.PublicUser, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p.mu.Lock()
	users, err := p.loadUsers(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	for i := range users {
		if users[i].EmailMatches(email) {
			p.mu.Unlock()
			return nil, ErrEmailInUse
		}
	}

	record := model.UserRecord{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	users = append(users, record)

	if err := p.persistSession(ctx, users, record.UID); err != nil {
		p.mu.Unlock()
		return nil, err
	}

	public := record.Public()
	p.current = public
	p.enqueueLocked(public)
	p.mu.Unlock()

	p.dispatch()
	return copyUser(public), nil
}

// SignIn authenticates against the registry and establishes the session.
// On any mismatch it fails with ErrInvalidCredentials, changes no state and
// fires no notification.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*model.PublicUser, error) {
	p.mu.Lock()
	users, err := p.loadUsers(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	var record *model.UserRecord
	for i := range users {
		if users[i].EmailMatches(email) {
			record = &users[i]
			break
		}
	}
	if record == nil {
		p.mu.Unlock()
		return nil, ErrInvalidCredentials
	}

	valid, err := auth.CheckPassword(password, record.PasswordHash)
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !valid {
		p.mu.Unlock()
		return nil, ErrInvalidCredentials
	}

	if err := p.setSessionLocked(ctx, record.UID); err != nil {
		p.mu.Unlock()
		return nil, err
	}

	public := record.Public()
	p.current = public
	p.enqueueLocked(public)
	p.mu.Unlock()

	p.dispatch()
	return copyUser(public), nil
}

// SignInFederated signs in with a profile supplied by the federated
// collaborator. An existing record with the profile's email absorbs the
// federated display name and photo, preferring federated values and never
// touching the password hash; otherwise a new passwordless record is
// created with a provider tag.
func (p *Provider) SignInFederated(ctx context.Context, profile FederatedProfile) (*model.PublicUser, error) {
	if profile.Email == "" {
		return nil, ErrMissingEmail
	}

	p.mu.Lock()
	users, err := p.loadUsers(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	idx := -1
	for i := range users {
		if users[i].EmailMatches(profile.Email) {
			idx = i
			break
		}
	}

	if idx == -1 {
		users = append(users, model.UserRecord{
			UID:         uuid.NewString(),
			Email:       profile.Email,
			DisplayName: firstNonEmpty(profile.Name, localPart(profile.Email)),
			PhotoURL:    profile.Picture,
			Provider:    model.ProviderGoogle,
		})
		idx = len(users) - 1
	} else {
		record := &users[idx]
		record.DisplayName = firstNonEmpty(profile.Name, record.DisplayName, localPart(profile.Email))
		record.PhotoURL = firstNonEmpty(profile.Picture, record.PhotoURL)
	}

	if err := p.persistSession(ctx, users, users[idx].UID); err != nil {
		p.mu.Unlock()
		return nil, err
	}

	public := users[idx].Public()
	p.current = public
	p.enqueueLocked(public)
	p.mu.Unlock()

	p.dispatch()
	return copyUser(public), nil
}

// ProfileChanges are the updatable public fields of a user record. Nil
// means leave unchanged.
type ProfileChanges struct {
	DisplayName *string
	PhotoURL    *string
}

// UpdateProfile merges the changes into the stored record, persists the
// registry, refreshes the session projection and notifies listeners.
func (p *Provider) UpdateProfile(ctx context.Context, user *model.PublicUser, changes ProfileChanges) (*model.PublicUser, error) {
	if user == nil {
		return nil, ErrNoActiveUser
	}

	p.mu.Lock()
	users, idx, err := p.findLocked(ctx, user.UID)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	if changes.DisplayName != nil {
		users[idx].DisplayName = *changes.DisplayName
	}
	if changes.PhotoURL != nil {
		users[idx].PhotoURL = *changes.PhotoURL
	}

	if err := p.persistUsers(ctx, users); err != nil {
		p.mu.Unlock()
		return nil, err
	}

	public := users[idx].Public()
	p.current = public
	p.enqueueLocked(public)
	p.mu.Unlock()

	p.dispatch()
	return copyUser(public), nil
}

// UpdatePassword replaces the stored password hash. The session and
// listeners are untouched.
func (p *Provider) UpdatePassword(ctx context.Context, user *model.PublicUser, newPassword string) error {
	if user == nil {
		return ErrNoActiveUser
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	users, idx, err := p.findLocked(ctx, user.UID)
	if err != nil {
		return err
	}
	users[idx].PasswordHash = hash

	return p.persistUsers(ctx, users)
}

// SignOut clears the session pointer and notifies listeners with nil.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	if err := p.kv.Delete(ctx, store.KeyCurrentSessionUID); err != nil {
		p.mu.Unlock()
		return err
	}
	p.current = nil
	p.enqueueLocked(nil)
	p.mu.Unlock()

	p.dispatch()
	return nil
}

// Members returns the public projections of every registered user.
func (p *Provider) Members(ctx context.Context) ([]*model.PublicUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, err := p.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (p *Provider) loadUsers(ctx context.Context) ([]model.UserRecord, error) {
	raw, ok, err := p.kv.Get(ctx, store.KeyUsers)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var users []model.UserRecord
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decoding user registry: %w", err)
	}
	return users, nil
}

func (p *Provider) findLocked(ctx context.Context, uid string) ([]model.UserRecord, int, error) {
	users, err := p.loadUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		if users[i].UID == uid {
			return users, i, nil
		}
	}
	return nil, 0, ErrUserNotFound
}

// persistUsers writes the registry. Must be called with p.mu held.
func (p *Provider) persistUsers(ctx context.Context, users []model.UserRecord) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encoding user registry: %w", err)
	}
	return p.kv.Set(ctx, store.KeyUsers, raw)
}

// persistSession writes the registry and the session pointer in one
// transaction, so a mid-operation failure never half-applies.
func (p *Provider) persistSession(ctx context.Context, users []model.UserRecord, uid string) error {
	rawUsers, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encoding user registry: %w", err)
	}
	rawUID, err := json.Marshal(uid)
	if err != nil {
		return fmt.Errorf("encoding session pointer: %w", err)
	}
	return p.kv.SetMulti(ctx, map[string][]byte{
		store.KeyUsers:             rawUsers,
		store.KeyCurrentSessionUID: rawUID,
	})
}

func (p *Provider) setSessionLocked(ctx context.Context, uid string) error {
	raw, err := json.Marshal(uid)
	if err != nil {
		return fmt.Errorf("encoding session pointer: %w", err)
	}
	return p.kv.Set(ctx, store.KeyCurrentSessionUID, raw)
}

// enqueueLocked queues one notification snapshot. Must be called with p.mu
// held; delivery happens in dispatch after the mutex is released.
func (p *Provider) enqueueLocked(u *model.PublicUser) {
	p.queue = append(p.queue, copyUser(u))
}

// dispatch drains queued notifications, invoking every listener in
// registration order, exactly once per state change. A mutation triggered
// from inside a listener enqueues its notification and returns; the
// in-flight drain loop delivers it before going quiet, so dispatch never
// recurses.
func (p *Provider) dispatch() {
	for {
		if !p.draining.CompareAndSwap(false, true) {
			// An active drain loop will deliver our queued snapshot.
			return
		}

		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			snapshot := p.queue[0]
			p.queue = p.queue[1:]
			listeners := make([]listenerEntry, len(p.listeners))
			copy(listeners, p.listeners)
			p.mu.Unlock()

			for _, entry := range listeners {
				entry.fn(snapshot)
			}
		}

		p.draining.Store(false)

		// Re-check: a snapshot may have been queued between the empty
		// check and the flag reset.
		p.mu.Lock()
		again := len(p.queue) > 0
		p.mu.Unlock()
		if !again {
			return
		}
	}
}

func copyUser(u *model.PublicUser) *model.PublicUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}
