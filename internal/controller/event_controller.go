// internal/controller/event_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/catalog"
	"github.com/unclebandit/notification-engine/internal/service"
)

// EventController exposes the catalog and the entry point for raising events.
type EventController struct {
	Catalog       *catalog.Catalog
	Notifications *service.NotificationService
	Logger        *zap.Logger
}

func NewEventController(cat *catalog.Catalog, notifications *service.NotificationService, logger *zap.Logger) *EventController {
	return &EventController{Catalog: cat, Notifications: notifications, Logger: logger}
}

func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": c.Catalog.All()})
}

// RaiseEvent resolves the tenant's preferences and queues the notification
// when it should be sent. Suppressed events still answer 202 with queued=false.
func (c *EventController) RaiseEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompanyID  string          `json:"companyId"`
		EventCode  string          `json:"eventCode"`
		Recipients []string        `json:"recipients"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}

	res, err := c.Notifications.RaiseEvent(r.Context(), body.CompanyID, body.EventCode, body.Recipients, body.Payload)
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
