package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/payouts/internal/app"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/attaboy/payouts/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("payout reconciler failed", "error", err)
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

	// Redis is only needed to invalidate the API's cached views.
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, cached views expire by ttl only", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	svc := app.NewServices(app.RouterDeps{Pool: pool, Redis: rdb, Config: cfg, Logger: logger})

	logger.Info("payout reconciler starting", "interval", cfg.ReconcileInterval, "batch_size", cfg.ReconcileBatchSize)
	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		sweep(ctx, svc.Reconciler, cfg.ReconcileBatchSize, logger)
		select {
		case <-ctx.Done():
			logger.Info("payout reconciler shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, reconciler *service.Reconciler, limit int, logger *slog.Logger) {
	result, err := reconciler.SyncPending(ctx, limit)
	if err != nil {
		logger.Error("reconcile sweep failed", "error", err)
		return
	}
	if len(result.Updated) > 0 || len(result.Errors) > 0 {
		logger.Info("reconcile sweep finished", "updated", len(result.Updated), "errors", len(result.Errors))
	}
	for _, e := range result.Errors {
		logger.Warn("payout not reconciled", "payout_id", e.PayoutID, "error", e.Error)
	}
}
