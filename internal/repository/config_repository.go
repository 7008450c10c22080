package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/model"
)

type ConfigRepositoryInterface interface {
	// Get returns (nil, nil) when the company has no override row.
	Get(ctx context.Context, companyID string) (*model.CompanyNotificationConfig, error)
	Save(ctx context.Context, cfg *model.CompanyNotificationConfig) error
	Delete(ctx context.Context, companyID string) (bool, error)
}

type ConfigRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewConfigRepository(conn *sql.DB, dialect db.Dialect) *ConfigRepository {
	return &ConfigRepository{DB: conn, Dialect: dialect}
}

const configColumns = `company_id, notifications_enabled, event_configs, brand_name, brand_color, logo_url,
       cc_emails, bcc_emails, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
       quiet_hours_timezone, updated_by, updated_at`

func (r *ConfigRepository) Get(ctx context.Context, companyID string) (*model.CompanyNotificationConfig, error) {
	query := rebind(r.Dialect, `SELECT `+configColumns+` FROM company_notification_configs WHERE company_id = ?`)

	var (
		c                   model.CompanyNotificationConfig
		eventsJSON, cc, bcc string
		updatedAt           int64
	)
	err := r.DB.QueryRowContext(ctx, query, companyID).Scan(
		&c.CompanyID, &c.NotificationsEnabled, &eventsJSON, &c.BrandName, &c.BrandColor, &c.LogoURL,
		&cc, &bcc, &c.QuietHoursEnabled, &c.QuietHoursStart, &c.QuietHoursEnd,
		&c.QuietHoursTimezone, &c.UpdatedBy, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventsJSON), &c.EventConfigs); err != nil {
		return nil, fmt.Errorf("decode event_configs for %s: %w", companyID, err)
	}
	if err := json.Unmarshal([]byte(cc), &c.CCEmails); err != nil {
		return nil, fmt.Errorf("decode cc_emails for %s: %w", companyID, err)
	}
	if err := json.Unmarshal([]byte(bcc), &c.BCCEmails); err != nil {
		return nil, fmt.Errorf("decode bcc_emails for %s: %w", companyID, err)
	}
	if c.EventConfigs == nil {
		c.EventConfigs = model.EventOverrides{}
	}
	if c.CCEmails == nil {
		c.CCEmails = []string{}
	}
	if c.BCCEmails == nil {
		c.BCCEmails = []string{}
	}
	c.UpdatedAt = fromNanos(updatedAt)
	return &c, nil
}

// Save inserts or replaces the row for cfg.CompanyID.
func (r *ConfigRepository) Save(ctx context.Context, cfg *model.CompanyNotificationConfig) error {
	eventsJSON, err := json.Marshal(cfg.EventConfigs)
	if err != nil {
		return err
	}
	cc, err := json.Marshal(nonNil(cfg.CCEmails))
	if err != nil {
		return err
	}
	bcc, err := json.Marshal(nonNil(cfg.BCCEmails))
	if err != nil {
		return err
	}

	query := rebind(r.Dialect, `
        INSERT INTO company_notification_configs (`+configColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (company_id) DO UPDATE SET
            notifications_enabled = excluded.notifications_enabled,
            event_configs         = excluded.event_configs,
            brand_name            = excluded.brand_name,
            brand_color           = excluded.brand_color,
            logo_url              = excluded.logo_url,
            cc_emails             = excluded.cc_emails,
            bcc_emails            = excluded.bcc_emails,
            quiet_hours_enabled   = excluded.quiet_hours_enabled,
            quiet_hours_start     = excluded.quiet_hours_start,
            quiet_hours_end       = excluded.quiet_hours_end,
            quiet_hours_timezone  = excluded.quiet_hours_timezone,
            updated_by            = excluded.updated_by,
            updated_at            = excluded.updated_at
    `)
	_, err = r.DB.ExecContext(ctx, query,
		cfg.CompanyID, cfg.NotificationsEnabled, string(eventsJSON), cfg.BrandName, cfg.BrandColor, cfg.LogoURL,
		string(cc), string(bcc), cfg.QuietHoursEnabled, cfg.QuietHoursStart, cfg.QuietHoursEnd,
		cfg.QuietHoursTimezone, cfg.UpdatedBy, toNanos(cfg.UpdatedAt),
	)
	return err
}

func (r *ConfigRepository) Delete(ctx context.Context, companyID string) (bool, error) {
	query := rebind(r.Dialect, `DELETE FROM company_notification_configs WHERE company_id = ?`)
	res, err := r.DB.ExecContext(ctx, query, companyID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ ConfigRepositoryInterface = (*ConfigRepository)(nil)
