// Package main provides a local development server backed by SQLite.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/codecritic/codecritic/auth"
	"github.com/codecritic/codecritic/config"
	"github.com/codecritic/codecritic/email"
	"github.com/codecritic/codecritic/llm"
	"github.com/codecritic/codecritic/review"
	"github.com/codecritic/codecritic/server"
	"github.com/codecritic/codecritic/storage/sqlite"
)

// devSecret signs tokens when SECRET_KEY is unset. Local use only.
const devSecret = "local-development-secret-change-me"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(config.DefaultConfigPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := sqlite.Open(cfg.Database.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := llm.New(cfg.LLMConfig())
	if err != nil {
		if !llm.IsKind(err, llm.KindConfigurationMissing) {
			return err
		}
		logger.Warn("model API key not configured, reviews will fail", "provider", cfg.Model.Provider)
		client = nil
	}

	reviewer := review.NewReviewer(client, cfg.ReviewOptions(), logger)
	reviewer.SetHistoryStore(store)

	secret := cfg.Auth.SecretKey
	if secret == "" {
		logger.Warn("SECRET_KEY not set, using the development secret")
		secret = devSecret
	}
	tokens, err := auth.NewTokens(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		CORSOrigins:         cfg.Server.CORSOrigins,
		RequireVerification: cfg.Auth.RequireVerification,
	}, reviewer, logger)
	srv.SetAccounts(store, tokens, email.NewLogSender(cfg.Email.FrontendURL, logger))

	logger.Info("starting local server", "addr", cfg.Server.Addr, "database", cfg.Database.SQLitePath)
	logger.Info("review endpoint", "url", fmt.Sprintf("http://localhost%s/api/review", cfg.Server.Addr))

	return http.ListenAndServe(cfg.Server.Addr, srv.Handler())
}
