// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/cache"
	"github.com/unclebandit/notification-engine/internal/catalog"
	"github.com/unclebandit/notification-engine/internal/config"
	"github.com/unclebandit/notification-engine/internal/controller"
	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/handler"
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
	logger, err := logging.New(cfg.LogLevel, "notification-server")
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

	cat := catalog.Default()
	resolver := service.NewConfigResolver(repository.NewConfigRepository(conn, dialect), cat, logger)
	if cfg.RedisAddr != "" {
		c, err := cache.NewConfigCache(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.ConfigCacheTTL, logger)
		if err != nil {
			logger.Warn("config cache disabled", zap.Error(err))
		} else {
			resolver.Cache = c
			defer c.Close()
		}
	}

	retry := service.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     service.ExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax),
	}
	deliveryQueue := service.NewDeliveryQueue(repository.NewQueueRepository(conn, dialect), resolver, retry, logger)
	deliveryQueue.Topic = cfg.DispatchQueue

	if cfg.AMQPURL != "" {
		bus, err := queue.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer bus.Close()
		deliveryQueue.Publisher = bus
		logger.Info("publishing dispatch wake-ups to RabbitMQ", zap.String("queue", cfg.DispatchQueue))
	} else {
		// no broker: dispatch in-process
		bus := queue.NewInMemoryQueue(logger)
		wake, err := queue.WakeChannel(bus, cfg.DispatchQueue, logger)
		if err != nil {
			logger.Fatal("failed to subscribe dispatcher", zap.Error(err))
		}
		deliveryQueue.Publisher = bus

		worker := service.NewWorker(deliveryQueue, sender.New(cfg.MockFailureRate, logger), service.WorkerConfig{
			ID:           cfg.WorkerID,
			PollInterval: cfg.WorkerPollInterval,
			Burst:        cfg.WorkerBurst,
		}, logger)
		go worker.Start(ctx, wake)
	}

	notifications := service.NewNotificationService(resolver, deliveryQueue, logger)

	router := handler.NewRouter(handler.Controllers{
		Config: controller.NewConfigController(resolver, logger),
		Events: controller.NewEventController(cat, notifications, logger),
		Queue:  controller.NewQueueController(deliveryQueue, logger),
	}, conn, cfg.CORSOrigins, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
