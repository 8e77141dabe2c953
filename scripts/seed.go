//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/config"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/util"
	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

// catalog is the default set of integration providers made available to every
// organization. Seeding is idempotent: existing providers are left untouched.
var catalog = []models.Integration{
	{Name: "Facebook Ads", Provider: "facebook_ads", AuthType: "oauth", Description: "Audience sync and campaign dispatch for Facebook Ads"},
	{Name: "Instagram", Provider: "instagram", AuthType: "oauth", Description: "Instagram business account publishing"},
	{Name: "Google Ads", Provider: "google_ads", AuthType: "oauth", Description: "Google Ads campaign management"},
	{Name: "YouTube", Provider: "youtube", AuthType: "oauth", Description: "YouTube channel uploads and analytics"},
	{Name: "Mailchimp", Provider: "mailchimp", AuthType: "api_key", Description: "Email list sync and campaign sending"},
	{Name: "Webhook", Provider: "webhook", AuthType: "custom", Description: "Generic outbound webhook delivery"},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Seed the integration catalog
	for _, integration := range catalog {
		integration.IsActive = true
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			DoNothing: true,
		}).Create(&integration).Error
		if err != nil {
			log.Fatalf("failed to seed integration %s: %v", integration.Provider, err)
		}
	}
	fmt.Printf("Integration catalog seeded (%d providers)\n", len(catalog))

	// Create admin user with their own organization
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry(), cfg.JWT.RefreshExpiry())
	if err != nil {
		log.Fatalf("failed to create JWT service: %v", err)
	}
	orgService := organizations.NewService(db, cache.NewMemory(cfg.Cache.MaxEntries), logger)
	authService := auth.NewService(db, jwtService, orgService, logger)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	result, err := authService.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
		OrgName:  "Default Organization",
	})
	if err != nil {
		if err == auth.ErrUserExists {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	// Promote the seed membership so the platform has one super_admin
	err = db.Model(&models.Membership{}).
		Where("user_id = ? AND organization_id = ?", result.User.ID, result.Organization.ID).
		Update("role", "super_admin").Error
	if err != nil {
		log.Fatalf("failed to promote admin user: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", result.User.Email)
	fmt.Printf("Organization: %s\n", result.Organization.Name)
	fmt.Printf("Access token: %s\n", result.Tokens.AccessToken)
}
