package service

import (
	"fmt"
	"time"

	appErrors "github.com/unclebandit/notification-engine/internal/errors"
	"github.com/unclebandit/notification-engine/internal/model"
)

// QuietHours is a parsed tenant-local window [Start, End) in minutes after
// midnight. Start > End means the window crosses midnight.
type QuietHours struct {
	Start int
	End   int
	Loc   *time.Location
}

// ParseQuietHours validates the quiet-hours fields of cfg. It returns
// (nil, nil) when quiet hours are disabled.
func ParseQuietHours(cfg *model.CompanyNotificationConfig) (*QuietHours, error) {
	if !cfg.QuietHoursEnabled {
		return nil, nil
	}
	start, err := parseClock("quietHoursStart", cfg.QuietHoursStart)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("quietHoursEnd", cfg.QuietHoursEnd)
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, appErrors.NewValidation("quietHoursEnd", "quiet hours start and end must differ")
	}
	if cfg.QuietHoursTimezone == "" {
		return nil, appErrors.NewValidation("quietHoursTimezone", "required when quiet hours are enabled")
	}
	loc, err := time.LoadLocation(cfg.QuietHoursTimezone)
	if err != nil {
		return nil, appErrors.NewValidation("quietHoursTimezone", fmt.Sprintf("unknown time zone %q", cfg.QuietHoursTimezone))
	}
	return &QuietHours{Start: start, End: end, Loc: loc}, nil
}

// Defer returns the instant the window ends if now falls inside it.
func (q *QuietHours) Defer(now time.Time) (time.Time, bool) {
	local := now.In(q.Loc)
	mins := local.Hour()*60 + local.Minute()
	at := func(dayOffset, m int) time.Time {
		return time.Date(local.Year(), local.Month(), local.Day()+dayOffset, m/60, m%60, 0, 0, q.Loc).UTC()
	}

	if q.Start < q.End {
		if mins >= q.Start && mins < q.End {
			return at(0, q.End), true
		}
		return now, false
	}

	switch {
	case mins >= q.Start:
		return at(1, q.End), true
	case mins < q.End:
		return at(0, q.End), true
	}
	return now, false
}
