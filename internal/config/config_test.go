// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GUILD_SUPERADMIN_EMAIL", "root@guild.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr() != "localhost:8787" {
		t.Errorf("ServerAddr = %q, want localhost:8787", cfg.ServerAddr())
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode by default")
	}
	if cfg.UseRedisCache() {
		t.Error("redis cache should be off without GUILD_REDIS_URL")
	}
	if cfg.FederatedEnabled() {
		t.Error("federated sign-in should be off without Google credentials")
	}
}

func TestLoad_MissingSuperadmin(t *testing.T) {
	t.Setenv("GUILD_SUPERADMIN_EMAIL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when GUILD_SUPERADMIN_EMAIL is unset")
	}
}

func TestLoad_SuperadminMustBeEmail(t *testing.T) {
	t.Setenv("GUILD_SUPERADMIN_EMAIL", "not-an-email")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-email superadmin value")
	}
}

func TestLoad_FederatedNeedsRedirectURL(t *testing.T) {
	t.Setenv("GUILD_SUPERADMIN_EMAIL", "root@guild.test")
	t.Setenv("GUILD_GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GUILD_GOOGLE_CLIENT_SECRET", "client-secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when redirect URL is missing")
	}

	t.Setenv("GUILD_GOOGLE_REDIRECT_URL", "http://localhost:8787/auth/google/callback")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.FederatedEnabled() {
		t.Error("expected federated sign-in to be enabled")
	}
}

func TestIsSuperadmin_CaseInsensitive(t *testing.T) {
	cfg := Config{SuperadminEmail: "Root@Guild.test"}

	if !cfg.IsSuperadmin("root@guild.TEST") {
		t.Error("superadmin match should ignore case")
	}
	if cfg.IsSuperadmin("other@guild.test") {
		t.Error("unexpected superadmin match")
	}
	if cfg.IsSuperadmin("") {
		t.Error("empty email must never match superadmin")
	}
}
