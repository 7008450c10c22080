// internal/service/delivery_queue.go
package service

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-engine/internal/errors"
	"github.com/unclebandit/notification-engine/internal/metrics"
	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/queue"
	"github.com/unclebandit/notification-engine/internal/repository"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = math.MaxInt / MaxPageSize
)

// ConfigProvider supplies the tenant config used at enqueue time.
type ConfigProvider interface {
	GetConfig(ctx context.Context, companyID string) (*model.CompanyNotificationConfig, error)
}

// CancelFilter selects items for bulk cancellation. At least one field is required.
type CancelFilter struct {
	QueueID   string
	CompanyID string
	Status    model.QueueStatus
}

// DeliveryQueue is the only writer of queue items.
type DeliveryQueue struct {
	Repo      repository.QueueRepositoryInterface
	Configs   ConfigProvider
	Publisher queue.Queue // optional wake-up signals
	Topic     string
	Retry     RetryPolicy
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

func NewDeliveryQueue(repo repository.QueueRepositoryInterface, configs ConfigProvider, retry RetryPolicy, logger *zap.Logger) *DeliveryQueue {
	return &DeliveryQueue{
		Repo:    repo,
		Configs: configs,
		Topic:   queue.DispatchTopic,
		Retry:   retry.orDefault(DefaultRetryPolicy()),
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// Enqueue creates a PENDING item for the given event. Cc/bcc recipients and
// branding are copied from the tenant config; quiet hours push scheduledFor
// to the end of the active window.
func (q *DeliveryQueue) Enqueue(ctx context.Context, companyID, eventCode string, to []string, payload json.RawMessage) (*model.QueueItem, error) {
	companyID, err := requireCompany(companyID)
	if err != nil {
		return nil, err
	}
	eventCode = strings.TrimSpace(eventCode)
	if eventCode == "" {
		return nil, appErrors.NewValidation("eventCode", "is required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !json.Valid(payload) {
		return nil, appErrors.NewValidation("payload", "must be valid JSON")
	}
	recipientsTo, err := validateEmails("recipients", to)
	if err != nil {
		return nil, err
	}

	cfg, err := q.Configs.GetConfig(ctx, companyID)
	if err != nil {
		return nil, err
	}
	recipients := model.Recipients{To: recipientsTo, CC: nonNilStrings(cfg.CCEmails), BCC: nonNilStrings(cfg.BCCEmails)}
	if len(recipients.To)+len(recipients.CC)+len(recipients.BCC) == 0 {
		return nil, appErrors.NewValidation("recipients", "no recipients supplied or configured")
	}

	now := q.Now()
	scheduledFor, deferred := now, false
	qh, err := ParseQuietHours(cfg)
	if err != nil {
		// a stored config that no longer parses must not block delivery
		q.Logger.Warn("ignoring invalid quiet hours", zap.String("company_id", companyID), zap.Error(err))
	} else if qh != nil {
		scheduledFor, deferred = qh.Defer(now)
	}

	item := &model.QueueItem{
		QueueID:      q.NewID(),
		CompanyID:    companyID,
		EventCode:    eventCode,
		Payload:      payload,
		Recipients:   recipients,
		Branding:     cfg.Branding(),
		Status:       model.StatusPending,
		ScheduledFor: scheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := q.Repo.Create(ctx, item); err != nil {
		return nil, appErrors.Internal("enqueue notification", err)
	}

	metrics.QueueEnqueued.WithLabelValues(strconv.FormatBool(deferred)).Inc()
	q.Logger.Info("notification enqueued",
		zap.String("queue_id", item.QueueID),
		zap.String("company_id", companyID),
		zap.String("event_code", eventCode),
		zap.Time("scheduled_for", scheduledFor),
		zap.Bool("quiet_hours_deferred", deferred),
	)
	q.wake(item)
	return item, nil
}

func (q *DeliveryQueue) wake(item *model.QueueItem) {
	if q.Publisher == nil {
		return
	}
	err := q.Publisher.Publish(q.Topic, queue.WakeUp{
		QueueID:      item.QueueID,
		CompanyID:    item.CompanyID,
		ScheduledFor: item.ScheduledFor,
	})
	if err != nil {
		q.Logger.Warn("dispatch wake-up not published", zap.String("queue_id", item.QueueID), zap.Error(err))
	}
}

// ClaimNext hands the oldest due PENDING item to workerID, or returns nil
// when nothing is due.
func (q *DeliveryQueue) ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.QueueItem, error) {
	item, err := q.Repo.ClaimNext(ctx, now.UTC())
	if err != nil {
		return nil, appErrors.Internal("claim queue item", err)
	}
	if item == nil {
		return nil, nil
	}
	metrics.QueueClaims.Inc()
	q.Logger.Debug("queue item claimed",
		zap.String("queue_id", item.QueueID),
		zap.String("worker_id", workerID),
		zap.Int("attempts", item.Attempts),
	)
	return item, nil
}

// ReportSuccess marks a PROCESSING item SENT. Items in any other state are
// left untouched.
func (q *DeliveryQueue) ReportSuccess(ctx context.Context, queueID string) error {
	changed, err := q.Repo.MarkSent(ctx, queueID, q.Now())
	if err != nil {
		return appErrors.Internal("mark queue item sent", err)
	}
	if changed {
		metrics.QueueOutcomes.WithLabelValues("sent").Inc()
		q.Logger.Info("notification sent", zap.String("queue_id", queueID))
		return nil
	}

	item, err := q.Get(ctx, queueID)
	if err != nil {
		return err
	}
	q.Logger.Info("success report ignored", zap.String("queue_id", queueID), zap.String("status", string(item.Status)))
	return nil
}

// ReportFailure records a failed attempt and either reschedules the item
// with backoff or moves it to FAILED once policy.MaxAttempts is reached.
// A zero policy falls back to the queue's configured one. The returned
// status is the item's status after the call.
func (q *DeliveryQueue) ReportFailure(ctx context.Context, queueID, errorMessage string, policy RetryPolicy) (model.QueueStatus, error) {
	policy = policy.orDefault(q.Retry)

	item, err := q.Get(ctx, queueID)
	if err != nil {
		return "", err
	}
	if item.Status != model.StatusProcessing {
		q.Logger.Info("failure report ignored", zap.String("queue_id", queueID), zap.String("status", string(item.Status)))
		return item.Status, nil
	}

	now := q.Now()
	if item.Attempts < policy.MaxAttempts {
		next := now.Add(policy.Backoff(item.Attempts))
		changed, err := q.Repo.Reschedule(ctx, queueID, item.Attempts, errorMessage, next, now)
		if err != nil {
			return "", appErrors.Internal("reschedule queue item", err)
		}
		if !changed {
			return q.currentStatus(ctx, queueID)
		}
		metrics.QueueOutcomes.WithLabelValues("retry").Inc()
		q.Logger.Warn("notification attempt failed, retry scheduled",
			zap.String("queue_id", queueID),
			zap.Int("attempts", item.Attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Time("next_attempt", next),
			zap.String("error", errorMessage),
		)
		return model.StatusPending, nil
	}

	changed, err := q.Repo.MarkFailed(ctx, queueID, item.Attempts, errorMessage, now)
	if err != nil {
		return "", appErrors.Internal("fail queue item", err)
	}
	if !changed {
		return q.currentStatus(ctx, queueID)
	}
	metrics.QueueOutcomes.WithLabelValues("failed").Inc()
	q.Logger.Error("notification permanently failed",
		zap.String("queue_id", queueID),
		zap.Int("attempts", item.Attempts),
		zap.String("error", errorMessage),
	)
	return model.StatusFailed, nil
}

// currentStatus is used after a lost compare-and-set, e.g. an operator
// cancelled the item while it was being sent.
func (q *DeliveryQueue) currentStatus(ctx context.Context, queueID string) (model.QueueStatus, error) {
	item, err := q.Get(ctx, queueID)
	if err != nil {
		return "", err
	}
	q.Logger.Info("queue item changed concurrently", zap.String("queue_id", queueID), zap.String("status", string(item.Status)))
	return item.Status, nil
}

func (q *DeliveryQueue) Get(ctx context.Context, queueID string) (*model.QueueItem, error) {
	item, err := q.Repo.GetByID(ctx, queueID)
	if err != nil {
		return nil, appErrors.Internal("load queue item", err)
	}
	if item == nil {
		return nil, appErrors.NewNotFound("queue item", queueID)
	}
	return item, nil
}

// List returns one page of items sorted by scheduledFor asc, createdAt desc.
func (q *DeliveryQueue) List(ctx context.Context, filter model.QueueFilter, page, pageSize int) ([]*model.QueueItem, model.Pagination, error) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// keeps (page-1)*pageSize inside int
	if page > MaxPage {
		page = MaxPage
	}
	offset := (page - 1) * pageSize

	items, total, err := q.Repo.List(ctx, filter, offset, pageSize)
	if err != nil {
		return nil, model.Pagination{}, appErrors.Internal("list queue", err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	return items, model.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}

// Cancel moves matching PENDING/PROCESSING items to CANCELLED and returns
// how many changed. Items already terminal are not counted.
func (q *DeliveryQueue) Cancel(ctx context.Context, filter CancelFilter) (int, error) {
	if filter.QueueID == "" && filter.CompanyID == "" && filter.Status == "" {
		return 0, appErrors.NewValidation("", "at least one of queueId, companyId or status is required")
	}

	n, err := q.Repo.Cancel(ctx, model.QueueFilter{
		QueueID:   filter.QueueID,
		CompanyID: filter.CompanyID,
		Status:    filter.Status,
	}, q.Now())
	if err != nil {
		return 0, appErrors.Internal("cancel queue items", err)
	}

	metrics.QueueCancelled.Add(float64(n))
	q.Logger.Info("queue items cancelled",
		zap.String("queue_id", filter.QueueID),
		zap.String("company_id", filter.CompanyID),
		zap.String("status", string(filter.Status)),
		zap.Int("cancelled", n),
	)
	return n, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
