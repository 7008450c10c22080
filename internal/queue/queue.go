package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DispatchTopic carries wake-up signals from enqueue to dispatch workers.
// Signals are advisory: the store stays the source of truth and workers
// also poll, so a lost signal only delays delivery until the next tick.
const DispatchTopic = "notification_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// WakeUp tells workers that an item became (or will become) claimable.
type WakeUp struct {
	QueueID      string    `json:"queue_id"`
	CompanyID    string    `json:"company_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// DecodeWakeUp accepts the in-memory value or a JSON body from the broker.
func DecodeWakeUp(payload any) (WakeUp, error) {
	switch p := payload.(type) {
	case WakeUp:
		return p, nil
	case *WakeUp:
		if p == nil {
			return WakeUp{}, fmt.Errorf("nil wake-up")
		}
		return *p, nil
	case []byte:
		var w WakeUp
		if err := json.Unmarshal(p, &w); err != nil {
			return WakeUp{}, fmt.Errorf("invalid wake-up body: %w", err)
		}
		return w, nil
	default:
		return WakeUp{}, fmt.Errorf("unexpected wake-up payload %T", payload)
	}
}

// InMemoryQueue delivers to in-process subscribers, retrying failed handlers.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(payload any) error
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := append([]func(payload any) error(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.maxRetries}
		go q.processJob(handler, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		q.logger.Warn("queue handler failed",
			zap.String("topic", job.Topic),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		if job.RetryCount > job.MaxRetries {
			q.logger.Error("queue job dropped after retries", zap.String("topic", job.Topic))
			return
		}

		// linear backoff before retry
		time.Sleep(time.Duration(job.RetryCount) * q.retryDelay)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// WakeChannel subscribes to topic and turns each valid wake-up into a
// non-blocking signal on the returned channel. Signals coalesce while a
// worker is busy.
func WakeChannel(q Queue, topic string, logger *zap.Logger) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	err := q.Subscribe(topic, func(payload any) error {
		w, err := DecodeWakeUp(payload)
		if err != nil {
			logger.Warn("discarding malformed wake-up", zap.Error(err))
			return nil
		}
		logger.Debug("wake-up received", zap.String("queue_id", w.QueueID))
		select {
		case ch <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}
