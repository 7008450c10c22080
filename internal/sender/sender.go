// Package sender holds the delivery transports used by dispatch workers.
// Real email rendering and SMTP are out of scope; the senders here log the
// outgoing notification and optionally simulate provider failures.
package sender

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/service"
)

var ErrMockDelivery = errors.New("mock send failed")

var (
	_ service.Sender = (*LogSender)(nil)
	_ service.Sender = (*MockSender)(nil)
)

// LogSender writes each notification to the structured log and always succeeds.
type LogSender struct {
	Logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{Logger: logger}
}

func (s *LogSender) Send(ctx context.Context, item *model.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Logger.Info("delivering notification",
		zap.String("queue_id", item.QueueID),
		zap.String("company_id", item.CompanyID),
		zap.String("event_code", item.EventCode),
		zap.Strings("to", item.Recipients.To),
		zap.Strings("cc", item.Recipients.CC),
		zap.Int("bcc_count", len(item.Recipients.BCC)),
		zap.String("brand_name", item.Branding.BrandName),
		zap.Int("attempt", item.Attempts),
	)
	return nil
}

// MockSender fails a configurable share of sends before delegating to Next.
type MockSender struct {
	Next        service.Sender
	FailureRate float64 // 0 never fails, 1 always fails

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockSender(next service.Sender, failureRate float64, seed int64) *MockSender {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockSender{Next: next, FailureRate: failureRate, rng: rand.New(rand.NewSource(seed))}
}

func (s *MockSender) Send(ctx context.Context, item *model.QueueItem) error {
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll < s.FailureRate {
		return ErrMockDelivery
	}
	return s.Next.Send(ctx, item)
}

// New picks the sender for a dispatch worker. A positive failure rate wraps
// the log sender in a MockSender.
func New(failureRate float64, logger *zap.Logger) service.Sender {
	base := NewLogSender(logger)
	if failureRate <= 0 {
		return base
	}
	return NewMockSender(base, failureRate, 0)
}
