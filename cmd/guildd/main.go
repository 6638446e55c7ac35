// Copyright (c) 2026 Quest Guild Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Command guildd runs the Quest Guild identity and membership service: a
// local account registry, a JSON document store and the admin privilege
// workflow, served over a JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/questguild/guild-go/internal/cache"
	"github.com/questguild/guild-go/internal/config"
	"github.com/questguild/guild-go/internal/docstore"
	"github.com/questguild/guild-go/internal/federated"
	"github.com/questguild/guild-go/internal/handler"
	"github.com/questguild/guild-go/internal/identity"
	"github.com/questguild/guild-go/internal/logging"
	"github.com/questguild/guild-go/internal/middleware"
	"github.com/questguild/guild-go/internal/profile"
	"github.com/questguild/guild-go/internal/scheduler"
	"github.com/questguild/guild-go/internal/store"
	"github.com/questguild/guild-go/internal/workflow"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "guildd - Quest Guild identity service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_SUPERADMIN_EMAIL      Superadmin account email (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_DB_PATH               SQLite database path (default: ./data/guild.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_SERVER_PORT           Server port (default: 8787)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_REDIS_URL             Redis URL for the profile cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_GOOGLE_CLIENT_ID      Google OAuth client ID (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_GOOGLE_CLIENT_SECRET  Google OAuth client secret (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GUILD_GOOGLE_REDIRECT_URL   Google OAuth redirect URL\n")
	}

	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("guildd %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	kv := store.NewKV(db)
	docs := docstore.New(kv)

	// WARN+ records are teed into the events collection.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logging.NewEventLogHandler(textHandler, docs))
	slog.SetDefault(logger)

	profileCache, err := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
		MaxEntries: cfg.CacheMaxSize,
	})
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer func() { _ = profileCache.Close() }()

	provider := identity.New(kv)
	if err := provider.Bootstrap(context.Background()); err != nil {
		return fmt.Errorf("bootstrapping identity provider: %w", err)
	}

	profiles := profile.NewService(docs, profileCache)
	wf := workflow.NewManager(docs, profiles, cfg.IsSuperadmin)

	var google handler.FederatedExchanger
	if cfg.FederatedEnabled() {
		google = federated.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		logger.Info("Google sign-in enabled")
	}

	lockout := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	sched := scheduler.New(docs, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	api := handler.New(provider, profiles, wf, google, lockout, cfg.IsSuperadmin, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           api.Routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
