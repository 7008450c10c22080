// cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/catalog"
	"github.com/unclebandit/notification-engine/internal/config"
	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/logging"
	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/repository"
	"github.com/unclebandit/notification-engine/internal/service"
)

const seededBy = "seeder"

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// demoTenants are written through the resolver so they pass the same
// validation as operator edits.
var demoTenants = map[string]model.ConfigPatch{
	"T1": {
		NotificationsEnabled: boolPtr(true),
		EventConfigs:         []model.EventConfig{{EventCode: "GRN_CREATED", Enabled: false}},
		BrandName:            strPtr("Tenant One Traders"),
		BrandColor:           strPtr("#0a7cff"),
		QuietHoursEnabled:    boolPtr(true),
		QuietHoursStart:      strPtr("22:00"),
		QuietHoursEnd:        strPtr("06:00"),
		QuietHoursTimezone:   strPtr("Asia/Kolkata"),
	},
	"ACME": {
		BrandName:  strPtr("Acme Supplies"),
		BrandColor: strPtr("#cc3300"),
		LogoURL:    strPtr("https://cdn.acme.example/logo.png"),
		CCEmails:   &[]string{"ops@acme.example"},
		BCCEmails:  &[]string{"audit@acme.example"},
		EventConfigs: []model.EventConfig{
			{EventCode: "SHIPMENT_STATUS_CHANGED", Enabled: true},
			{EventCode: "ORDER_CANCELLED", Enabled: false},
		},
	},
	"QUIET": {
		NotificationsEnabled: boolPtr(false),
		BrandName:            strPtr("Quiet Co"),
	},
}

func seed(ctx context.Context, resolver *service.ConfigResolver) error {
	for companyID, patch := range demoTenants {
		if _, err := resolver.Upsert(ctx, companyID, patch, seededBy); err != nil {
			return fmt.Errorf("seed %s: %w", companyID, err)
		}
		fmt.Printf("Seeded: %s\n", companyID)
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "notification-seeder")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer conn.Close()

	resolver := service.NewConfigResolver(repository.NewConfigRepository(conn, dialect), catalog.Default(), logger)
	if err := seed(ctx, resolver); err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	fmt.Println("Database seeding completed successfully!")
}
