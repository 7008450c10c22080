package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/model"
)

// Sender delivers one claimed item. A returned error counts as a failed attempt.
type Sender interface {
	Send(ctx context.Context, item *model.QueueItem) error
}

// WorkerConfig controls the polling loop.
type WorkerConfig struct {
	ID           string
	PollInterval time.Duration // how often the queue is polled without a wake-up
	Burst        int           // max items handled per tick
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		ID:           "worker-1",
		PollInterval: time.Second,
		Burst:        10,
	}
}

// Worker claims due items from the delivery queue and hands them to a Sender.
type Worker struct {
	Queue  *DeliveryQueue
	Sender Sender
	Config WorkerConfig
	Logger *zap.Logger
}

func NewWorker(q *DeliveryQueue, sender Sender, cfg WorkerConfig, logger *zap.Logger) *Worker {
	def := DefaultWorkerConfig()
	if cfg.ID == "" {
		cfg.ID = def.ID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	return &Worker{Queue: q, Sender: sender, Config: cfg, Logger: logger}
}

// ProcessOnce claims at most one due item and reports its outcome. It
// returns false when nothing was due.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	item, err := w.Queue.ClaimNext(ctx, w.Config.ID, w.Queue.Now())
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}

	if sendErr := w.Sender.Send(ctx, item); sendErr != nil {
		if _, err := w.Queue.ReportFailure(ctx, item.QueueID, sendErr.Error(), RetryPolicy{}); err != nil {
			return true, err
		}
		return true, nil
	}
	return true, w.Queue.ReportSuccess(ctx, item.QueueID)
}

// Drain processes up to Burst items and returns how many were claimed.
func (w *Worker) Drain(ctx context.Context) int {
	n := 0
	for n < w.Config.Burst {
		if ctx.Err() != nil {
			return n
		}
		claimed, err := w.ProcessOnce(ctx)
		if err != nil {
			w.Logger.Error("dispatch failed", zap.String("worker_id", w.Config.ID), zap.Error(err))
		}
		if !claimed {
			return n
		}
		n++
	}
	return n
}

// Start runs until ctx is cancelled. It drains on every tick and whenever
// wake fires; wake may be nil.
func (w *Worker) Start(ctx context.Context, wake <-chan struct{}) {
	ticker := time.NewTicker(w.Config.PollInterval)
	defer ticker.Stop()

	w.Logger.Info("dispatch worker started",
		zap.String("worker_id", w.Config.ID),
		zap.Duration("poll_interval", w.Config.PollInterval),
		zap.Int("burst", w.Config.Burst),
	)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("dispatch worker stopping", zap.String("worker_id", w.Config.ID))
			return
		case <-ticker.C:
		case <-wake:
		}
		// keep going while full bursts come back
		for w.Drain(ctx) == w.Config.Burst {
		}
	}
}
