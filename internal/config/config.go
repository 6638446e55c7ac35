// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"GUILD_DB_PATH" envDefault:"./data/guild.db"`
	ServerHost string `env:"GUILD_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"GUILD_SERVER_PORT" envDefault:"8787"`
	Env        string `env:"GUILD_ENV" envDefault:"development"`
	LogLevel   string `env:"GUILD_LOG_LEVEL" envDefault:"info"`

	// SuperadminEmail identifies the single account allowed to approve or
	// deny admin requests. It is configuration, not a stored role.
	SuperadminEmail string `env:"GUILD_SUPERADMIN_EMAIL,required"`

	// Cache configuration
	RedisURL     string `env:"GUILD_REDIS_URL"`                        // Optional Redis URL for the profile cache
	CachePrefix  string `env:"GUILD_CACHE_PREFIX" envDefault:"guild:"` // Redis key prefix
	CacheTTL     int    `env:"GUILD_CACHE_TTL" envDefault:"300"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"GUILD_CACHE_MAX_SIZE" envDefault:"1000"` // Max memory cache entries

	// Google federated sign-in. Sign-in with Google is disabled when the
	// client ID or secret is missing.
	GoogleClientID     string `env:"GUILD_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GUILD_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GUILD_GOOGLE_REDIRECT_URL"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// FederatedEnabled returns true if Google sign-in credentials are configured.
func (c Config) FederatedEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// CacheTTLDuration returns the cache TTL as a time.Duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// IsSuperadmin reports whether the given email is the configured superadmin
// identity. Comparison is case-insensitive, matching registry semantics.
func (c Config) IsSuperadmin(email string) bool {
	return email != "" && strings.EqualFold(email, c.SuperadminEmail)
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if !strings.Contains(cfg.SuperadminEmail, "@") {
		return nil, fmt.Errorf("GUILD_SUPERADMIN_EMAIL %q is not an email address", cfg.SuperadminEmail)
	}

	if cfg.FederatedEnabled() && cfg.GoogleRedirectURL == "" {
		return nil, fmt.Errorf("GUILD_GOOGLE_REDIRECT_URL is required when Google sign-in is configured")
	}

	return cfg, nil
}
