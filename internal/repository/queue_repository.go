package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/model"
)

type QueueRepositoryInterface interface {
	Create(ctx context.Context, item *model.QueueItem) error
	// GetByID returns (nil, nil) when the item does not exist.
	GetByID(ctx context.Context, queueID string) (*model.QueueItem, error)

	// ClaimNext moves the oldest due PENDING item to PROCESSING in one
	// conditional update and returns it, or (nil, nil) when nothing is due.
	ClaimNext(ctx context.Context, now time.Time) (*model.QueueItem, error)

	// The transitions below only apply when the row is still PROCESSING
	// (and, for failures, still at expectedAttempts). They report whether
	// the row changed.
	MarkSent(ctx context.Context, queueID string, now time.Time) (bool, error)
	Reschedule(ctx context.Context, queueID string, expectedAttempts int, lastError string, next, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, queueID string, expectedAttempts int, lastError string, now time.Time) (bool, error)

	List(ctx context.Context, filter model.QueueFilter, offset, limit int) ([]*model.QueueItem, int, error)
	// Cancel moves every matching PENDING/PROCESSING item to CANCELLED.
	Cancel(ctx context.Context, filter model.QueueFilter, now time.Time) (int, error)
}

type QueueRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewQueueRepository(conn *sql.DB, dialect db.Dialect) *QueueRepository {
	return &QueueRepository{DB: conn, Dialect: dialect}
}

const queueColumns = `queue_id, company_id, event_code, payload, recipients, branding, status,
       scheduled_for, attempts, last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*model.QueueItem, error) {
	var (
		item                           model.QueueItem
		payload, recipients, branding  string
		scheduledFor, created, updated int64
		lastError                      sql.NullString
	)
	err := row.Scan(
		&item.QueueID, &item.CompanyID, &item.EventCode, &payload, &recipients, &branding, &item.Status,
		&scheduledFor, &item.Attempts, &lastError, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	item.Payload = json.RawMessage(payload)
	if err := json.Unmarshal([]byte(recipients), &item.Recipients); err != nil {
		return nil, fmt.Errorf("decode recipients for %s: %w", item.QueueID, err)
	}
	if err := json.Unmarshal([]byte(branding), &item.Branding); err != nil {
		return nil, fmt.Errorf("decode branding for %s: %w", item.QueueID, err)
	}
	if lastError.Valid {
		msg := lastError.String
		item.LastError = &msg
	}
	item.ScheduledFor = fromNanos(scheduledFor)
	item.CreatedAt = fromNanos(created)
	item.UpdatedAt = fromNanos(updated)
	return &item, nil
}

func (r *QueueRepository) Create(ctx context.Context, item *model.QueueItem) error {
	payload := item.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	recipients, err := json.Marshal(item.Recipients)
	if err != nil {
		return err
	}
	branding, err := json.Marshal(item.Branding)
	if err != nil {
		return err
	}

	query := rebind(r.Dialect, `
        INSERT INTO notification_queue (`+queueColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	var lastError sql.NullString
	if item.LastError != nil {
		lastError = sql.NullString{String: *item.LastError, Valid: true}
	}
	_, err = r.DB.ExecContext(ctx, query,
		item.QueueID, item.CompanyID, item.EventCode, string(payload), string(recipients), string(branding),
		string(item.Status), toNanos(item.ScheduledFor), item.Attempts, lastError,
		toNanos(item.CreatedAt), toNanos(item.UpdatedAt),
	)
	return err
}

func (r *QueueRepository) GetByID(ctx context.Context, queueID string) (*model.QueueItem, error) {
	query := rebind(r.Dialect, `SELECT `+queueColumns+` FROM notification_queue WHERE queue_id = ?`)
	item, err := scanQueueItem(r.DB.QueryRowContext(ctx, query, queueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *QueueRepository) ClaimNext(ctx context.Context, now time.Time) (*model.QueueItem, error) {
	lock := ""
	if r.Dialect == db.Postgres {
		lock = "FOR UPDATE SKIP LOCKED"
	}
	query := rebind(r.Dialect, fmt.Sprintf(`
        UPDATE notification_queue
        SET status = 'PROCESSING', attempts = attempts + 1, updated_at = ?
        WHERE queue_id = (
            SELECT queue_id FROM notification_queue
            WHERE status = 'PENDING' AND scheduled_for <= ?
            ORDER BY scheduled_for ASC, created_at ASC
            LIMIT 1
            %s
        )
        AND status = 'PENDING'
        RETURNING %s
    `, lock, queueColumns))

	n := toNanos(now)
	item, err := scanQueueItem(r.DB.QueryRowContext(ctx, query, n, n))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *QueueRepository) MarkSent(ctx context.Context, queueID string, now time.Time) (bool, error) {
	query := rebind(r.Dialect, `
        UPDATE notification_queue
        SET status = 'SENT', last_error = NULL, updated_at = ?
        WHERE queue_id = ? AND status = 'PROCESSING'
    `)
	return r.execChanged(ctx, query, toNanos(now), queueID)
}

func (r *QueueRepository) Reschedule(ctx context.Context, queueID string, expectedAttempts int, lastError string, next, now time.Time) (bool, error) {
	query := rebind(r.Dialect, `
        UPDATE notification_queue
        SET status = 'PENDING', scheduled_for = ?, last_error = ?, updated_at = ?
        WHERE queue_id = ? AND status = 'PROCESSING' AND attempts = ?
    `)
	return r.execChanged(ctx, query, toNanos(next), lastError, toNanos(now), queueID, expectedAttempts)
}

func (r *QueueRepository) MarkFailed(ctx context.Context, queueID string, expectedAttempts int, lastError string, now time.Time) (bool, error) {
	query := rebind(r.Dialect, `
        UPDATE notification_queue
        SET status = 'FAILED', last_error = ?, updated_at = ?
        WHERE queue_id = ? AND status = 'PROCESSING' AND attempts = ?
    `)
	return r.execChanged(ctx, query, lastError, toNanos(now), queueID, expectedAttempts)
}

func (r *QueueRepository) execChanged(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// whereClause appends one condition per non-empty filter field.
func whereClause(filter model.QueueFilter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	if filter.QueueID != "" {
		sb.WriteString(" AND queue_id = ?")
		args = append(args, filter.QueueID)
	}
	if filter.CompanyID != "" {
		sb.WriteString(" AND company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.EventCode != "" {
		sb.WriteString(" AND event_code = ?")
		args = append(args, filter.EventCode)
	}
	if filter.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}
	return sb.String(), args
}

func (r *QueueRepository) List(ctx context.Context, filter model.QueueFilter, offset, limit int) ([]*model.QueueItem, int, error) {
	where, args := whereClause(filter)

	var total int
	countQuery := rebind(r.Dialect, `SELECT COUNT(*) FROM notification_queue WHERE 1=1`+where)
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := rebind(r.Dialect, `SELECT `+queueColumns+` FROM notification_queue WHERE 1=1`+where+
		` ORDER BY scheduled_for ASC, created_at DESC LIMIT ? OFFSET ?`)
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*model.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *QueueRepository) Cancel(ctx context.Context, filter model.QueueFilter, now time.Time) (int, error) {
	where, args := whereClause(filter)
	query := rebind(r.Dialect, `
        UPDATE notification_queue
        SET status = 'CANCELLED', last_error = ?, updated_at = ?
        WHERE status IN ('PENDING', 'PROCESSING')`+where)

	res, err := r.DB.ExecContext(ctx, query, append([]any{model.ManualCancelReason, toNanos(now)}, args...)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

var _ QueueRepositoryInterface = (*QueueRepository)(nil)
