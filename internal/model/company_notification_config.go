// internal/model/company_notification_config.go
package model

import (
	"encoding/json"
	"sort"
	"time"
)

// EventConfig is the wire form of a single per-event override.
type EventConfig struct {
	EventCode string `json:"eventCode"`
	Enabled   bool   `json:"enabled"`
}

// EventOverrides maps eventCode to its explicit enabled flag.
// It is serialized as a list of EventConfig sorted by eventCode.
type EventOverrides map[string]bool

func (o EventOverrides) List() []EventConfig {
	list := make([]EventConfig, 0, len(o))
	for code, enabled := range o {
		list = append(list, EventConfig{EventCode: code, Enabled: enabled})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EventCode < list[j].EventCode })
	return list
}

// Lookup reports the override for code and whether one exists.
func (o EventOverrides) Lookup(code string) (enabled bool, ok bool) {
	enabled, ok = o[code]
	return enabled, ok
}

func (o EventOverrides) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.List())
}

func (o *EventOverrides) UnmarshalJSON(data []byte) error {
	var list []EventConfig
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*o = OverridesFromList(list)
	return nil
}

// OverridesFromList builds the map form; later entries win on duplicate codes.
func OverridesFromList(list []EventConfig) EventOverrides {
	o := make(EventOverrides, len(list))
	for _, ec := range list {
		o[ec.EventCode] = ec.Enabled
	}
	return o
}

type CompanyNotificationConfig struct {
	CompanyID            string         `json:"companyId"`
	NotificationsEnabled bool           `json:"notificationsEnabled"`
	EventConfigs         EventOverrides `json:"eventConfigs"`
	BrandName            string         `json:"brandName"`
	BrandColor           string         `json:"brandColor"`
	LogoURL              string         `json:"logoUrl"`
	CCEmails             []string       `json:"ccEmails"`
	BCCEmails            []string       `json:"bccEmails"`
	QuietHoursEnabled    bool           `json:"quietHoursEnabled"`
	QuietHoursStart      string         `json:"quietHoursStart"`
	QuietHoursEnd        string         `json:"quietHoursEnd"`
	QuietHoursTimezone   string         `json:"quietHoursTimezone"`
	UpdatedBy            string         `json:"updatedBy"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// DefaultCompanyConfig is what a tenant without an override row resolves to.
func DefaultCompanyConfig(companyID string) *CompanyNotificationConfig {
	return &CompanyNotificationConfig{
		CompanyID:            companyID,
		NotificationsEnabled: true,
		EventConfigs:         EventOverrides{},
		CCEmails:             []string{},
		BCCEmails:            []string{},
	}
}

// Branding returns the brand fields that travel with a queue item.
func (c *CompanyNotificationConfig) Branding() Branding {
	return Branding{
		BrandName:  c.BrandName,
		BrandColor: c.BrandColor,
		LogoURL:    c.LogoURL,
	}
}

// ConfigPatch carries the fields of a partial update. Nil means "not supplied".
type ConfigPatch struct {
	NotificationsEnabled *bool         `json:"notificationsEnabled,omitempty"`
	EventConfigs         []EventConfig `json:"eventConfigs,omitempty"`
	BrandName            *string       `json:"brandName,omitempty"`
	BrandColor           *string       `json:"brandColor,omitempty"`
	LogoURL              *string       `json:"logoUrl,omitempty"`
	CCEmails             *[]string     `json:"ccEmails,omitempty"`
	BCCEmails            *[]string     `json:"bccEmails,omitempty"`
	QuietHoursEnabled    *bool         `json:"quietHoursEnabled,omitempty"`
	QuietHoursStart      *string       `json:"quietHoursStart,omitempty"`
	QuietHoursEnd        *string       `json:"quietHoursEnd,omitempty"`
	QuietHoursTimezone   *string       `json:"quietHoursTimezone,omitempty"`
}
