// internal/service/resolver.go
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/catalog"
	appErrors "github.com/unclebandit/notification-engine/internal/errors"
	"github.com/unclebandit/notification-engine/internal/metrics"
	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/repository"
)

// ConfigCache is an optional cache in front of the config table. Writes go
// through with Set; reads only Fill an absent key, so a reader holding an
// older row never replaces what a concurrent writer stored.
type ConfigCache interface {
	Get(ctx context.Context, companyID string) (*model.CompanyNotificationConfig, bool, error)
	Set(ctx context.Context, cfg *model.CompanyNotificationConfig) error
	Fill(ctx context.Context, cfg *model.CompanyNotificationConfig) error
	Invalidate(ctx context.Context, companyID string) error
}

// ConfigResolver owns the lifecycle of tenant notification configs and
// merges them with the event catalog.
type ConfigResolver struct {
	Repo    repository.ConfigRepositoryInterface
	Catalog *catalog.Catalog
	Cache   ConfigCache
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewConfigResolver(repo repository.ConfigRepositoryInterface, cat *catalog.Catalog, logger *zap.Logger) *ConfigResolver {
	return &ConfigResolver{
		Repo:    repo,
		Catalog: cat,
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Decide is the effective send decision for one (tenant, event) pair.
// override is nil when the tenant has no explicit entry for the event.
func Decide(masterEnabled bool, override *bool, defaultEnabled bool) bool {
	if !masterEnabled {
		return false
	}
	if override != nil {
		return *override
	}
	return defaultEnabled
}

func requireCompany(companyID string) (string, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return "", appErrors.NewValidation("companyId", "is required")
	}
	return companyID, nil
}

// GetConfig returns the stored config or the default-shaped one.
func (r *ConfigResolver) GetConfig(ctx context.Context, companyID string) (*model.CompanyNotificationConfig, error) {
	companyID, err := requireCompany(companyID)
	if err != nil {
		return nil, err
	}

	if r.Cache != nil {
		cfg, ok, err := r.Cache.Get(ctx, companyID)
		switch {
		case err != nil:
			metrics.ConfigCacheLookups.WithLabelValues("error").Inc()
			r.Logger.Warn("config cache read failed", zap.String("company_id", companyID), zap.Error(err))
		case ok:
			metrics.ConfigCacheLookups.WithLabelValues("hit").Inc()
			return cfg, nil
		default:
			metrics.ConfigCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	cfg, err := r.Repo.Get(ctx, companyID)
	if err != nil {
		return nil, appErrors.Internal("load company config", err)
	}
	if cfg == nil {
		cfg = model.DefaultCompanyConfig(companyID)
	}

	if r.Cache != nil {
		if err := r.Cache.Fill(ctx, cfg); err != nil {
			r.Logger.Warn("config cache fill failed", zap.String("company_id", companyID), zap.Error(err))
		}
	}
	return cfg, nil
}

// GetEffectiveEventConfigs lists every catalog event with its resolved flag.
// Overrides for codes that are no longer in the catalog are ignored.
func (r *ConfigResolver) GetEffectiveEventConfigs(ctx context.Context, companyID string) ([]model.EffectiveEventConfig, error) {
	cfg, err := r.GetConfig(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return r.EffectiveFor(cfg), nil
}

// EffectiveFor resolves every catalog event against an already loaded config.
func (r *ConfigResolver) EffectiveFor(cfg *model.CompanyNotificationConfig) []model.EffectiveEventConfig {
	for code := range cfg.EventConfigs {
		if !r.Catalog.Has(code) {
			r.Logger.Warn("ignoring override for unknown event",
				zap.String("company_id", cfg.CompanyID), zap.String("event_code", code))
		}
	}

	defs := r.Catalog.All()
	out := make([]model.EffectiveEventConfig, 0, len(defs))
	for _, def := range defs {
		e := model.EffectiveEventConfig{
			EventCode:      def.EventCode,
			Description:    def.Description,
			Category:       def.Category,
			DefaultEnabled: def.DefaultEnabled,
			Enabled:        def.DefaultEnabled,
			Source:         model.SourceDefault,
		}
		if enabled, ok := cfg.EventConfigs.Lookup(def.EventCode); ok {
			e.Enabled = enabled
			e.Source = model.SourceOverride
		}
		out = append(out, e)
	}
	return out
}

// ShouldSend resolves the send decision and returns the config it used.
func (r *ConfigResolver) ShouldSend(ctx context.Context, companyID, eventCode string) (bool, *model.CompanyNotificationConfig, error) {
	def, ok := r.Catalog.Lookup(eventCode)
	if !ok {
		return false, nil, appErrors.NewValidation("eventCode", "unknown event "+eventCode)
	}
	cfg, err := r.GetConfig(ctx, companyID)
	if err != nil {
		return false, nil, err
	}

	var override *bool
	if enabled, found := cfg.EventConfigs.Lookup(eventCode); found {
		override = &enabled
	}
	return Decide(cfg.NotificationsEnabled, override, def.DefaultEnabled), cfg, nil
}

// Upsert creates the tenant row if needed and applies only the supplied
// fields. Nothing is written when any field fails validation.
func (r *ConfigResolver) Upsert(ctx context.Context, companyID string, patch model.ConfigPatch, updatedBy string) (*model.CompanyNotificationConfig, error) {
	companyID, err := requireCompany(companyID)
	if err != nil {
		return nil, err
	}

	current, err := r.Repo.Get(ctx, companyID)
	if err != nil {
		return nil, appErrors.Internal("load company config", err)
	}
	if current == nil {
		current = model.DefaultCompanyConfig(companyID)
	}

	next, err := r.applyPatch(current, patch)
	if err != nil {
		return nil, err
	}
	if _, err := ParseQuietHours(next); err != nil {
		return nil, err
	}

	next.UpdatedBy = updatedBy
	next.UpdatedAt = r.Now()
	if err := r.save(ctx, next); err != nil {
		return nil, err
	}

	r.Logger.Info("company notification config updated",
		zap.String("company_id", companyID), zap.String("updated_by", updatedBy))
	return next, nil
}

func (r *ConfigResolver) applyPatch(current *model.CompanyNotificationConfig, patch model.ConfigPatch) (*model.CompanyNotificationConfig, error) {
	next := *current
	next.EventConfigs = make(model.EventOverrides, len(current.EventConfigs)+len(patch.EventConfigs))
	for code, enabled := range current.EventConfigs {
		next.EventConfigs[code] = enabled
	}

	if patch.NotificationsEnabled != nil {
		next.NotificationsEnabled = *patch.NotificationsEnabled
	}
	for _, ec := range patch.EventConfigs {
		if !r.Catalog.Has(ec.EventCode) {
			r.Logger.Warn("dropping override for unknown event",
				zap.String("company_id", current.CompanyID), zap.String("event_code", ec.EventCode))
			continue
		}
		next.EventConfigs[ec.EventCode] = ec.Enabled
	}
	if patch.BrandName != nil {
		next.BrandName = strings.TrimSpace(*patch.BrandName)
	}
	if patch.BrandColor != nil {
		color := strings.TrimSpace(*patch.BrandColor)
		if err := validateBrandColor(color); err != nil {
			return nil, err
		}
		next.BrandColor = color
	}
	if patch.LogoURL != nil {
		u := strings.TrimSpace(*patch.LogoURL)
		if err := validateLogoURL(u); err != nil {
			return nil, err
		}
		next.LogoURL = u
	}
	if patch.CCEmails != nil {
		cc, err := validateEmails("ccEmails", *patch.CCEmails)
		if err != nil {
			return nil, err
		}
		next.CCEmails = cc
	}
	if patch.BCCEmails != nil {
		bcc, err := validateEmails("bccEmails", *patch.BCCEmails)
		if err != nil {
			return nil, err
		}
		next.BCCEmails = bcc
	}
	if patch.QuietHoursEnabled != nil {
		next.QuietHoursEnabled = *patch.QuietHoursEnabled
	}
	if patch.QuietHoursStart != nil {
		next.QuietHoursStart = strings.TrimSpace(*patch.QuietHoursStart)
	}
	if patch.QuietHoursEnd != nil {
		next.QuietHoursEnd = strings.TrimSpace(*patch.QuietHoursEnd)
	}
	if patch.QuietHoursTimezone != nil {
		next.QuietHoursTimezone = strings.TrimSpace(*patch.QuietHoursTimezone)
	}
	return &next, nil
}

// Reset removes the tenant override row. It reports whether a row existed.
func (r *ConfigResolver) Reset(ctx context.Context, companyID string) (bool, error) {
	companyID, err := requireCompany(companyID)
	if err != nil {
		return false, err
	}
	deleted, err := r.Repo.Delete(ctx, companyID)
	if err != nil {
		return false, appErrors.Internal("delete company config", err)
	}
	r.writeThrough(ctx, model.DefaultCompanyConfig(companyID))
	if deleted {
		r.Logger.Info("company notification config reset", zap.String("company_id", companyID))
	}
	return deleted, nil
}

// ToggleMaster flips notificationsEnabled and leaves every other field alone.
func (r *ConfigResolver) ToggleMaster(ctx context.Context, companyID string, enabled bool, updatedBy string) (*model.CompanyNotificationConfig, error) {
	companyID, err := requireCompany(companyID)
	if err != nil {
		return nil, err
	}
	current, err := r.Repo.Get(ctx, companyID)
	if err != nil {
		return nil, appErrors.Internal("load company config", err)
	}
	if current == nil {
		current = model.DefaultCompanyConfig(companyID)
	}

	current.NotificationsEnabled = enabled
	current.UpdatedBy = updatedBy
	current.UpdatedAt = r.Now()
	if err := r.save(ctx, current); err != nil {
		return nil, err
	}

	r.Logger.Info("company notifications toggled",
		zap.String("company_id", companyID), zap.Bool("enabled", enabled), zap.String("updated_by", updatedBy))
	return current, nil
}

func (r *ConfigResolver) save(ctx context.Context, cfg *model.CompanyNotificationConfig) error {
	if err := r.Repo.Save(ctx, cfg); err != nil {
		return appErrors.Internal("save company config", err)
	}
	r.writeThrough(ctx, cfg)
	return nil
}

// writeThrough replaces the cached entry with the committed config. If that
// fails the entry is dropped so the next read goes to the store.
func (r *ConfigResolver) writeThrough(ctx context.Context, cfg *model.CompanyNotificationConfig) {
	if r.Cache == nil {
		return
	}
	err := r.Cache.Set(ctx, cfg)
	if err == nil {
		return
	}
	r.Logger.Warn("config cache write failed", zap.String("company_id", cfg.CompanyID), zap.Error(err))
	if err := r.Cache.Invalidate(ctx, cfg.CompanyID); err != nil {
		r.Logger.Error("config cache invalidate failed", zap.String("company_id", cfg.CompanyID), zap.Error(err))
	}
}
