// hakku.ai prompt gateway server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hakku-ai/gateway/internal/api"
	"github.com/hakku-ai/gateway/internal/audit"
	"github.com/hakku-ai/gateway/internal/config"
	"github.com/hakku-ai/gateway/internal/guard"
	"github.com/hakku-ai/gateway/internal/llm"
	"github.com/hakku-ai/gateway/internal/metrics"
	"github.com/hakku-ai/gateway/internal/middleware"
	"github.com/hakku-ai/gateway/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "daily_limit", cfg.Quota.DailyLimit)

	// Initialize dependencies.
	attempts, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := attempts.Close(); closeErr != nil {
			slog.Error("Failed to close attempt store", "error", closeErr)
		}
	}()

	if err := attempts.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	rules := guard.DefaultRules()
	if cfg.Guard.RulesPath != "" {
		rules, err = guard.LoadRules(cfg.Guard.RulesPath)
		if err != nil {
			slog.Error("Failed to load blocklist rules", "error", err, "path", cfg.Guard.RulesPath)
			os.Exit(1)
		}
		slog.Info("Blocklist rules loaded", "path", cfg.Guard.RulesPath, "rules", len(rules))
	}
	promptGuard := guard.New(cfg.Guard.MaxPromptLen, rules)

	completer := llm.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.Model, cfg.Upstream.Timeout)

	recorder, err := audit.NewRecorder(audit.Config{
		Enabled:       cfg.Audit.Enabled,
		Dir:           cfg.Audit.Dir,
		GlobalEnabled: cfg.Audit.GlobalEnabled,
		GlobalPath:    cfg.Audit.GlobalPath,
		QueueSize:     cfg.Audit.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize audit recorder", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := recorder.Close(); closeErr != nil {
			slog.Error("Failed to close audit recorder", "error", closeErr)
		}
	}()

	handler := api.NewHandler(attempts, completer, promptGuard, recorder, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	handler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())

	// Create server.
	// Note: the assistant endpoint streams SSE, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartRetentionSweeper(ctx, attempts, time.Duration(cfg.Quota.RetentionDays)*24*time.Hour)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
