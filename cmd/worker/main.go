package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmassage/booking-api/internal/config"
	"github.com/openmassage/booking-api/internal/repository/postgres"
	"github.com/openmassage/booking-api/pkg/logger"
	redisbroker "github.com/openmassage/booking-api/pkg/messaging/redis"
	"github.com/openmassage/booking-api/pkg/metrics"
	"github.com/openmassage/booking-api/pkg/worker"
)

const cleanupInterval = time.Hour

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics("booking_worker")
	outboxRepo := postgres.NewOutboxRepository(db)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := processor.CleanupProcessed(ctx, cfg.Outbox.EventExpiry); err != nil {
					log.Error(err, "Failed to clean up processed events")
				}
			}
		}
	}()

	processor.Start(ctx)
	log.Info("Worker exited")
}
