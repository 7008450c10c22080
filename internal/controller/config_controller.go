// internal/controller/config_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-engine/internal/errors"
	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/service"
)

// ConfigController serves the tenant notification settings screen.
type ConfigController struct {
	Resolver *service.ConfigResolver
	Logger   *zap.Logger
}

func NewConfigController(resolver *service.ConfigResolver, logger *zap.Logger) *ConfigController {
	return &ConfigController{Resolver: resolver, Logger: logger}
}

// GetConfig returns the stored (or default) config and the resolved event list.
func (c *ConfigController) GetConfig(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")

	cfg, err := c.Resolver.GetConfig(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"config": cfg,
		"events": c.Resolver.EffectiveFor(cfg),
	})
}

func (c *ConfigController) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch model.ConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}

	cfg, err := c.Resolver.Upsert(r.Context(), chi.URLParam(r, "companyId"), patch, updatedBy(r))
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (c *ConfigController) ResetConfig(w http.ResponseWriter, r *http.Request) {
	deleted, err := c.Resolver.Reset(r.Context(), chi.URLParam(r, "companyId"))
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (c *ConfigController) ToggleMaster(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	if body.Enabled == nil {
		writeServiceError(w, c.Logger, r, appErrors.NewValidation("enabled", "is required"))
		return
	}

	cfg, err := c.Resolver.ToggleMaster(r.Context(), chi.URLParam(r, "companyId"), *body.Enabled, updatedBy(r))
	if err != nil {
		writeServiceError(w, c.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// MissingCompany answers config requests that carry no company id.
func (c *ConfigController) MissingCompany(w http.ResponseWriter, r *http.Request) {
	writeServiceError(w, c.Logger, r, appErrors.NewValidation("companyId", "is required"))
}
