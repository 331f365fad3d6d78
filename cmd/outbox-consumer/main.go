package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/attaboy/payouts/internal/infra"
	"github.com/attaboy/payouts/internal/outbox"
	"github.com/attaboy/payouts/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
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

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	// A disabled producer acknowledges every publish, which would drain the
	// outbox without delivering anything.
	if !producer.Enabled() {
		return errors.New("kafka is disabled: set KAFKA_ENABLED=true and KAFKA_BROKERS to relay payout events")
	}

	relay := outbox.NewRelay(pool, repository.NewOutboxRepository(), producer,
		cfg.KafkaTopicPrefix, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	backlog := relay.CheckBacklog(ctx)
	logger.Info("outbox relay starting", "pending", backlog.Pending, "topic_prefix", cfg.KafkaTopicPrefix)
	return relay.Run(ctx)
}
