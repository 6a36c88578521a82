// Package main provides the HTTP server for self-hosted deployments.
//
// Configuration is read from codecritic.yml (or CONFIG_PATH) and these
// environment variables:
//
//	OPENROUTER_API_KEY - OpenRouter API key (when model.provider is openrouter)
//	ANTHROPIC_API_KEY  - Anthropic API key (when model.provider is anthropic)
//	MODEL_PROVIDER     - openrouter (default) or anthropic
//	MODEL_NAME         - Model ID override
//	DATABASE_URL       - PostgreSQL connection string (required)
//	SECRET_KEY         - Access token signing secret (required for accounts)
//	BREVO_API_KEY      - Brevo API key for verification emails (optional)
//	FROM_EMAIL         - Sender address for emails
//	FRONTEND_URL       - Base URL used in verification links
//	PORT               - HTTP server port (default: 8000)
//
// Usage:
//
//	go run cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codecritic/codecritic/auth"
	"github.com/codecritic/codecritic/config"
	"github.com/codecritic/codecritic/email"
	"github.com/codecritic/codecritic/llm"
	"github.com/codecritic/codecritic/review"
	"github.com/codecritic/codecritic/server"
	"github.com/codecritic/codecritic/storage/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Initialize PostgreSQL storage
	store, err := postgres.NewFromDSN(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Run migrations
	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	client, err := llm.New(cfg.LLMConfig())
	if err != nil {
		if !llm.IsKind(err, llm.KindConfigurationMissing) {
			return err
		}
		// The server still starts; /health reports the missing key and
		// /api/review answers 500 until it is configured.
		logger.Warn("model API key not configured", "provider", cfg.Model.Provider)
		client = nil
	} else {
		logger.Info("model configured",
			"provider", cfg.Model.Provider,
			"model", cfg.Model.Name,
			"key_hint", llm.KeyHint(cfg.Model.APIKey),
		)
	}

	reviewer := review.NewReviewer(client, cfg.ReviewOptions(), logger)
	reviewer.SetHistoryStore(store)

	srv := server.New(server.Config{
		CORSOrigins:         cfg.Server.CORSOrigins,
		RequireVerification: cfg.Auth.RequireVerification,
	}, reviewer, logger)

	if cfg.Auth.SecretKey == "" {
		logger.Warn("SECRET_KEY not set, account and history routes are disabled")
	} else {
		tokens, err := auth.NewTokens(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		srv.SetAccounts(store, tokens, newMailer(cfg, logger))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Long timeout for model calls with retries
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newMailer(cfg *config.Config, logger *slog.Logger) email.Sender {
	if cfg.Email.BrevoAPIKey == "" {
		logger.Warn("BREVO_API_KEY not set, verification links will be logged")
		return email.NewLogSender(cfg.Email.FrontendURL, logger)
	}
	return email.NewBrevo(cfg.Email.BrevoAPIKey, cfg.Email.FromEmail, cfg.Email.FromName, cfg.Email.FrontendURL)
}
