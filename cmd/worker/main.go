// cmd/worker/main.go
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/catalog"
	"github.com/unclebandit/notification-engine/internal/config"
	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/logging"
	"github.com/unclebandit/notification-engine/internal/queue"
	"github.com/unclebandit/notification-engine/internal/repository"
	"github.com/unclebandit/notification-engine/internal/sender"
	"github.com/unclebandit/notification-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "notification-worker")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, dialect, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer conn.Close()

	worker := newWorker(cfg, conn, dialect, logger)

	// Without a broker the worker relies on polling alone.
	var wake <-chan struct{}
	if cfg.AMQPURL != "" {
		bus, err := queue.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer bus.Close()
		if wake, err = queue.WakeChannel(bus, cfg.DispatchQueue, logger); err != nil {
			logger.Fatal("failed to register consumer", zap.Error(err))
		}
		logger.Info("waiting for dispatch wake-ups", zap.String("queue", cfg.DispatchQueue))
	}

	worker.Start(ctx, wake)
}

func newWorker(cfg config.Config, conn *sql.DB, dialect db.Dialect, logger *zap.Logger) *service.Worker {
	resolver := service.NewConfigResolver(repository.NewConfigRepository(conn, dialect), catalog.Default(), logger)
	retry := service.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     service.ExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax),
	}
	deliveryQueue := service.NewDeliveryQueue(repository.NewQueueRepository(conn, dialect), resolver, retry, logger)

	return service.NewWorker(deliveryQueue, sender.New(cfg.MockFailureRate, logger), service.WorkerConfig{
		ID:           cfg.WorkerID,
		PollInterval: cfg.WorkerPollInterval,
		Burst:        cfg.WorkerBurst,
	}, logger)
}
