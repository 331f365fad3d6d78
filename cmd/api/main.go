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

	"github.com/attaboy/payouts/internal/app"
	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// The view cache is optional; without Redis every read goes to Postgres.
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, payout view cache disabled", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := app.RouterDeps{
		Pool:     pool,
		Redis:    rdb,
		Config:   cfg,
		JWTMgr:   auth.NewJWTManager(cfg.JWTSecret, cfg.AdminTokenTTL()),
		Registry: registry,
		Logger:   logger,
	}
	r := app.NewRouter(deps)

	if cfg.BootstrapAdminEmail != "" {
		bootstrapAdmin(ctx, deps, logger)
	}

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // batch processing calls the provider per payout
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// bootstrapAdmin creates the configured super admin once. An existing
// account is left untouched.
func bootstrapAdmin(ctx context.Context, deps app.RouterDeps, logger *slog.Logger) {
	svc := app.NewServices(app.RouterDeps{Pool: deps.Pool, Config: deps.Config, JWTMgr: deps.JWTMgr, Logger: logger})
	_, err := svc.Auth.CreateAdmin(ctx, deps.Config.BootstrapAdminEmail, deps.Config.BootstrapAdminPassword, "Bootstrap Admin", auth.RoleSuperAdmin)

	var appErr *domain.AppError
	switch {
	case err == nil:
		logger.Info("bootstrap admin created", "email", deps.Config.BootstrapAdminEmail)
	case errors.As(err, &appErr) && appErr.Code == "CONFLICT":
		logger.Debug("bootstrap admin already exists")
	default:
		logger.Error("bootstrap admin failed", "error", err)
	}
}
