// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/questguild/guild-go/internal/cache"
	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/model"
	"github.com/questguild/guild-go/internal/store"
)

func testService(t *testing.T) (*Service, *docstore.Store) {
	t.Helper()

	db, err := store.NewDB(t.TempDir() + "/guild.db")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	docs := docstore.New(store.NewKV(db))
	mem := cache.NewMemory(time.Minute, 100)
	t.Cleanup(func() { _ = mem.Close() })

	return NewService(docs, mem), docs
}

func alice() *model.PublicUser {
	return &model.PublicUser{UID: "u1", Email: "alice@example.com", DisplayName: "Alice"}
}

func TestEnsureCreatesBaseProfile(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if err := svc.Ensure(ctx, alice()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, exists, err := svc.Hydrate(ctx, "u1")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if !exists {
		t.Fatal("profile should exist after Ensure")
	}
	if p.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", p.Role, model.RoleUser)
	}
	if p.DisplayName != "Alice" {
		t.Errorf("displayName = %q, want Alice", p.DisplayName)
	}
	if p.CreatedAt == 0 {
		t.Error("createdAt should be set")
	}
}

func TestEnsureFallsBackToEmail(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	user := &model.PublicUser{UID: "u2", Email: "bob@example.com"}
	if err := svc.Ensure(ctx, user); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, _, err := svc.Hydrate(ctx, "u2")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if p.DisplayName != "bob@example.com" {
		t.Errorf("displayName = %q, want email fallback", p.DisplayName)
	}
}

func TestEnsureLeavesExistingProfileAlone(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if err := svc.Ensure(ctx, alice()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := svc.SetRole(ctx, "u1", model.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if err := svc.Ensure(ctx, alice()); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	role, err := svc.Role(ctx, "u1")
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if role != model.RoleAdmin {
		t.Errorf("role = %q, Ensure must not reset an existing profile", role)
	}
}

func TestSaveMergesPrefsWithoutTouchingRole(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if err := svc.Ensure(ctx, alice()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := svc.SetRole(ctx, "u1", model.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	prefs := model.Prefs{DisplayName: "Alice G.", Goal: "summit", Sponsor: true}
	if err := svc.Save(ctx, alice(), prefs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p, _, err := svc.Hydrate(ctx, "u1")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if p.Role != model.RoleAdmin {
		t.Errorf("role = %q, Save must not change roles", p.Role)
	}
	if p.DisplayName != "Alice G." {
		t.Errorf("displayName = %q, want Alice G.", p.DisplayName)
	}
	if p.Prefs.Goal != "summit" || !p.Prefs.Sponsor {
		t.Errorf("prefs = %+v, want goal and sponsor saved", p.Prefs)
	}
	if p.UpdatedAt == 0 {
		t.Error("updatedAt should be set")
	}
	if p.CreatedAt == 0 {
		t.Error("createdAt from Ensure should survive the merge")
	}
}

func TestHydrateMissingProfile(t *testing.T) {
	svc, _ := testService(t)

	_, exists, err := svc.Hydrate(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if exists {
		t.Error("missing profile should report exists=false")
	}
}

func TestHydrateSeesWritesBehindTheCache(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if err := svc.Ensure(ctx, alice()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, _, err := svc.Hydrate(ctx, "u1"); err != nil {
		t.Fatalf("warming Hydrate: %v", err)
	}

	// The write must invalidate the warmed entry.
	if err := svc.SetRole(ctx, "u1", model.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	p, _, err := svc.Hydrate(ctx, "u1")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if p.Role != model.RoleAdmin {
		t.Errorf("role = %q, cache must be invalidated on write", p.Role)
	}
}

func TestRoleDefaultsForUnknownUID(t *testing.T) {
	svc, _ := testService(t)

	role, err := svc.Role(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if role != model.RoleUser {
		t.Errorf("role = %q, want the base role", role)
	}
}
