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

	"github.com/ctellolasalle/RondinLS/internal/api"
	"github.com/ctellolasalle/RondinLS/internal/config"
	"github.com/ctellolasalle/RondinLS/internal/db"
	"github.com/ctellolasalle/RondinLS/internal/service"
	"github.com/ctellolasalle/RondinLS/pkg/infra"
	"github.com/ctellolasalle/RondinLS/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		slog.Error("CRITICAL: JWT_SECRET environment variable is missing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := db.NewPostgresRepository(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		slog.Error("Fatal error connecting to Postgres", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()

	// The round window config is a hard precondition for the report
	// endpoint; failing to warm the cache at boot is fatal, exactly like
	// failing to reach the database.
	configCache := service.NewConfigCache()
	if err := configCache.Reload(ctx, postgres); err != nil {
		slog.Error("Fatal error loading configuration", "error", err)
		os.Exit(1)
	}

	ronda := service.NewRondaService(postgres, configCache, logger)
	handlers := api.NewHandlers(postgres, ronda, configCache, cfg.JWTSecret, cfg.BcryptCost, logger)
	router := api.NewRouter(handlers, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	metrics.HealthStatus.Set(1)
	slog.Info("🚀 RondinLS API started", "addr", cfg.ListenAddr, "pid", os.Getpid())

	<-ctx.Done()
	slog.Info("👋 Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	slog.Info("✅ Shutdown complete")
}
