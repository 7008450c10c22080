// internal/model/queue_item.go
package model

import (
	"encoding/json"
	"time"
)

type QueueStatus string

const (
	StatusPending    QueueStatus = "PENDING"
	StatusProcessing QueueStatus = "PROCESSING"
	StatusSent       QueueStatus = "SENT"
	StatusFailed     QueueStatus = "FAILED"
	StatusCancelled  QueueStatus = "CANCELLED"
)

// ManualCancelReason is written to LastError when an operator cancels an item.
const ManualCancelReason = "Manually cancelled"

// ParseQueueStatus accepts the upper-case status names only.
func ParseQueueStatus(s string) (QueueStatus, bool) {
	switch st := QueueStatus(s); st {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed, StatusCancelled:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition is allowed.
func (s QueueStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

type Recipients struct {
	To  []string `json:"to"`
	CC  []string `json:"cc"`
	BCC []string `json:"bcc"`
}

type Branding struct {
	BrandName  string `json:"brandName"`
	BrandColor string `json:"brandColor"`
	LogoURL    string `json:"logoUrl"`
}

type QueueItem struct {
	QueueID      string          `json:"queueId"`
	CompanyID    string          `json:"companyId"`
	EventCode    string          `json:"eventCode"`
	Payload      json.RawMessage `json:"payload"`
	Recipients   Recipients      `json:"recipients"`
	Branding     Branding        `json:"branding"`
	Status       QueueStatus     `json:"status"`
	ScheduledFor time.Time       `json:"scheduledFor"`
	Attempts     int             `json:"attempts"`
	LastError    *string         `json:"lastError,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// QueueFilter narrows list and cancel operations. Empty fields do not filter.
type QueueFilter struct {
	QueueID   string
	CompanyID string
	EventCode string
	Status    QueueStatus
}

type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalCount int  `json:"totalCount"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}
