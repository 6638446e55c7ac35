// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package profile manages the profiles collection: one document per uid
// carrying display name, email, role and preferences. Reads go through the
// cache; every write invalidates the cached entry.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/questguild/guild-go/internal/cache"
	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/model"
)

// Service provides profile document access.
type Service struct {
	docs  *docstore.Store
	cache cache.Cache
	now   func() time.Time
}

// NewService creates the profile service.
func NewService(docs *docstore.Store, c cache.Cache) *Service {
	return &Service{docs: docs, cache: c, now: time.Now}
}

// Ensure creates the uid's profile with the base role if it does not exist
// yet. Existing profiles are left untouched.
func (s *Service) Ensure(ctx context.Context, user *model.PublicUser) error {
	if user == nil {
		return nil
	}

	_, exists, err := s.docs.GetDocument(ctx, model.CollectionProfiles, user.UID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.docs.SetDocument(ctx, model.CollectionProfiles, user.UID, map[string]any{
		"displayName": displayNameOr(user),
		"email":       user.Email,
		"role":        model.RoleUser,
		"createdAt":   s.now().UnixMilli(),
	}, false)
	if err != nil {
		return err
	}
	return s.invalidate(ctx, user.UID)
}

// Save merges the user's preferences into the profile document. The role
// field is never written here; roles move only through the admin workflow.
func (s *Service) Save(ctx context.Context, user *model.PublicUser, prefs model.Prefs) error {
	if user == nil {
		return nil
	}

	err := s.docs.SetDocument(ctx, model.CollectionProfiles, user.UID, map[string]any{
		"displayName": firstNonEmpty(prefs.DisplayName, displayNameOr(user)),
		"email":       user.Email,
		"prefs":       prefsFields(prefs),
		"updatedAt":   s.now().UnixMilli(),
	}, true)
	if err != nil {
		return err
	}
	return s.invalidate(ctx, user.UID)
}

// Hydrate returns the uid's profile, reading through the cache.
func (s *Service) Hydrate(ctx context.Context, uid string) (model.Profile, bool, error) {
	var p model.Profile

	if raw, err := s.cache.Get(ctx, cacheKey(uid)); err == nil {
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, true, nil
		}
		// Undecodable cache entries fall through to the store.
	}

	fields, exists, err := s.docs.GetDocument(ctx, model.CollectionProfiles, uid)
	if err != nil {
		return p, false, err
	}
	if !exists {
		return p, false, nil
	}
	if err := docstore.Decode(fields, &p); err != nil {
		return p, false, fmt.Errorf("profile %s: %w", uid, err)
	}

	if raw, err := json.Marshal(p); err == nil {
		_ = s.cache.Set(ctx, cacheKey(uid), raw, 0)
	}
	return p, true, nil
}

// Role returns the uid's role, defaulting to the base role when no profile
// exists.
func (s *Service) Role(ctx context.Context, uid string) (string, error) {
	p, exists, err := s.Hydrate(ctx, uid)
	if err != nil {
		return "", err
	}
	if !exists || p.Role == "" {
		return model.RoleUser, nil
	}
	return p.Role, nil
}

// SetRole writes the uid's role, creating the profile if needed.
func (s *Service) SetRole(ctx context.Context, uid, role string) error {
	err := s.docs.UpdateDocument(ctx, model.CollectionProfiles, uid, map[string]any{
		"role":      role,
		"updatedAt": s.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.invalidate(ctx, uid)
}

func (s *Service) invalidate(ctx context.Context, uid string) error {
	if err := s.cache.Delete(ctx, cacheKey(uid)); err != nil && err != cache.ErrClosed {
		return fmt.Errorf("invalidating profile cache for %s: %w", uid, err)
	}
	return nil
}

func cacheKey(uid string) string { return "profile:" + uid }

func displayNameOr(user *model.PublicUser) string {
	return firstNonEmpty(user.DisplayName, user.Email)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func prefsFields(prefs model.Prefs) map[string]any {
	return map[string]any{
		"displayName":   prefs.DisplayName,
		"goal":          prefs.Goal,
		"sponsor":       prefs.Sponsor,
		"notifications": prefs.Notifications,
	}
}
