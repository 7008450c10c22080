// internal/model/event_definition.go
package model

// EventDefinition is one entry of the system event catalog.
type EventDefinition struct {
	EventCode      string `json:"eventCode"`
	Description    string `json:"description"`
	DefaultEnabled bool   `json:"defaultEnabled"`
	Category       string `json:"category"`
}

// ConfigSource tells where an effective enabled flag came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceOverride ConfigSource = "override"
)

// EffectiveEventConfig is the merged view of one catalog event for a tenant.
type EffectiveEventConfig struct {
	EventCode      string       `json:"eventCode"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	DefaultEnabled bool         `json:"defaultEnabled"`
	Enabled        bool         `json:"enabled"`
	Source         ConfigSource `json:"source"`
}
