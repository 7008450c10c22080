// internal/controller/queue_controller.go
package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-engine/internal/errors"
	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/service"
)

// QueueController is the operator view over the delivery queue.
type QueueController struct {
	Queue  *service.DeliveryQueue
	Logger *zap.Logger
}

func NewQueueController(q *service.DeliveryQueue, logger *zap.Logger) *QueueController {
	return &QueueController{Queue: q, Logger: logger}
}

func parseStatus(raw string) (model.QueueStatus, error) {
	if raw == "" {
		return "", nil
	}
	status, ok := model.ParseQueueStatus(strings.ToUpper(raw))
	if !ok {
		return "", appErrors.NewValidation("status", "unknown queue status "+raw)
	}
	return status, nil
}

func (c *QueueController) ListQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := parseStatus(q.Get("status"))
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	// unparsable paging values fall back to the defaults
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	items, pagination, err := c.Queue.List(r.Context(), model.QueueFilter{
		CompanyID: q.Get("companyId"),
		EventCode: q.Get("eventCode"),
		Status:    status,
	}, page, pageSize)
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue":      items,
		"pagination": pagination,
	})
}

func (c *QueueController) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := c.Queue.Get(r.Context(), chi.URLParam(r, "queueId"))
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (c *QueueController) CancelQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := parseStatus(q.Get("status"))
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}

	n, err := c.Queue.Cancel(r.Context(), service.CancelFilter{
		QueueID:   q.Get("queueId"),
		CompanyID: q.Get("companyId"),
		Status:    status,
	})
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}
