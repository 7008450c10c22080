package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/metrics"
	"github.com/unclebandit/notification-engine/internal/model"
)

// Reasons a raised event was not queued.
const (
	ReasonMasterDisabled = "notifications disabled for company"
	ReasonEventDisabled  = "event disabled for company"
)

type RaiseResult struct {
	Queued bool             `json:"queued"`
	Reason string           `json:"reason,omitempty"`
	Item   *model.QueueItem `json:"item,omitempty"`
}

// NotificationService is the entry point for domain events: it asks the
// resolver whether the tenant wants the notification and enqueues it if so.
type NotificationService struct {
	Resolver *ConfigResolver
	Queue    *DeliveryQueue
	Logger   *zap.Logger
}

func NewNotificationService(resolver *ConfigResolver, q *DeliveryQueue, logger *zap.Logger) *NotificationService {
	return &NotificationService{Resolver: resolver, Queue: q, Logger: logger}
}

func (s *NotificationService) RaiseEvent(ctx context.Context, companyID, eventCode string, to []string, payload json.RawMessage) (*RaiseResult, error) {
	send, cfg, err := s.Resolver.ShouldSend(ctx, companyID, eventCode)
	if err != nil {
		metrics.EventsRaised.WithLabelValues(eventCode, "rejected").Inc()
		return nil, err
	}
	if !send {
		reason := ReasonEventDisabled
		if !cfg.NotificationsEnabled {
			reason = ReasonMasterDisabled
		}
		metrics.EventsRaised.WithLabelValues(eventCode, "suppressed").Inc()
		s.Logger.Info("notification suppressed",
			zap.String("company_id", cfg.CompanyID),
			zap.String("event_code", eventCode),
			zap.String("reason", reason),
		)
		return &RaiseResult{Queued: false, Reason: reason}, nil
	}

	item, err := s.Queue.Enqueue(ctx, companyID, eventCode, to, payload)
	if err != nil {
		metrics.EventsRaised.WithLabelValues(eventCode, "rejected").Inc()
		return nil, err
	}
	metrics.EventsRaised.WithLabelValues(eventCode, "queued").Inc()
	return &RaiseResult{Queued: true, Item: item}, nil
}
