package api

import (
	"log/slog"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/handlers"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	OrgService     *organizations.Service
	Recorder       *activity.Recorder
	Encryptor      *crypto.Encryptor
	AsynqClient    *asynq.Client
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.OrgHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.OrgService, cfg.Recorder)
	orgHandler := handlers.NewOrganizationHandler(cfg.OrgService, cfg.Recorder)
	automationHandler := handlers.NewAutomationHandler(cfg.DB, cfg.AsynqClient, cfg.Recorder)
	campaignHandler := handlers.NewCampaignHandler(cfg.DB, cfg.AsynqClient, cfg.Recorder)
	audienceHandler := handlers.NewAudienceHandler(cfg.DB, cfg.Recorder)
	integrationHandler := handlers.NewIntegrationHandler(cfg.DB, cfg.Encryptor, cfg.Recorder)
	activityHandler := handlers.NewActivityHandler(cfg.DB)
	analyticsHandler := handlers.NewAnalyticsHandler(cfg.DB)
	notificationHandler := handlers.NewNotificationHandler(cfg.DB)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.With(middleware.OptionalAuth(cfg.JWTService)).Get("/auth/status", authHandler.Status)

		// Authenticated, no tenant context needed
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Get("/notifications", notificationHandler.List)
			r.Post("/notifications/{notificationID}/read", notificationHandler.MarkRead)
			r.Post("/notifications/read-all", notificationHandler.MarkAllRead)

			r.Get("/organizations", orgHandler.List)
			r.Post("/organizations", orgHandler.Create)
			r.Get("/organizations/{orgID}", orgHandler.Get)
			r.Post("/organizations/{orgID}/switch", orgHandler.Switch)
		})

		// Tenant-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.Tenant(cfg.OrgService))
			r.Use(middleware.RequireTenant)

			// Organization management
			r.Route("/organizations/current", func(r chi.Router) {
				r.Get("/", orgHandler.Current)
				r.With(middleware.RequirePermission(permissions.ResourceOrganization, permissions.ActionUpdate)).
					Put("/", orgHandler.Update)

				r.Route("/members", func(r chi.Router) {
					r.With(middleware.RequirePermission(permissions.ResourceUsers, permissions.ActionRead)).
						Get("/", orgHandler.ListMembers)
					r.With(middleware.RequirePermission(permissions.ResourceUsers, permissions.ActionCreate)).
						Post("/", orgHandler.InviteMember)
					r.With(middleware.RequirePermission(permissions.ResourceUsers, permissions.ActionUpdate)).
						Put("/{memberID}", orgHandler.UpdateMember)
					r.With(middleware.RequirePermission(permissions.ResourceUsers, permissions.ActionDelete)).
						Delete("/{memberID}", orgHandler.RemoveMember)
				})
			})

			// Automations
			r.Route("/automations", func(r chi.Router) {
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionRead)).
					Get("/", automationHandler.List)
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionCreate)).
					Post("/", automationHandler.Create)
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionRead)).
					Get("/{automationID}", automationHandler.Get)
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionUpdate)).
					Put("/{automationID}", automationHandler.Update)
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionDelete)).
					Delete("/{automationID}", automationHandler.Delete)
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionUse)).
					Post("/{automationID}/run", automationHandler.Run)
				r.With(middleware.RequirePermission(permissions.ResourceAutomations, permissions.ActionRead)).
					Get("/{automationID}/executions", automationHandler.ListExecutions)
			})

			// Campaigns
			r.Route("/campaigns", func(r chi.Router) {
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionRead)).
					Get("/", campaignHandler.List)
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionCreate)).
					Post("/", campaignHandler.Create)
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionRead)).
					Get("/{campaignID}", campaignHandler.Get)
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionUpdate)).
					Put("/{campaignID}", campaignHandler.Update)
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionUpdate)).
					Put("/{campaignID}/status", campaignHandler.UpdateStatus)
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionUse)).
					Post("/{campaignID}/dispatch", campaignHandler.Dispatch)
				r.With(middleware.RequirePermission(permissions.ResourceCampaigns, permissions.ActionDelete)).
					Delete("/{campaignID}", campaignHandler.Delete)
			})

			// Audiences and contacts
			r.Route("/audiences", func(r chi.Router) {
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionRead)).
					Get("/", audienceHandler.List)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionCreate)).
					Post("/", audienceHandler.Create)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionRead)).
					Get("/{audienceID}", audienceHandler.Get)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionUpdate)).
					Put("/{audienceID}", audienceHandler.Update)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionDelete)).
					Delete("/{audienceID}", audienceHandler.Delete)

				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionRead)).
					Get("/{audienceID}/contacts", audienceHandler.ListContacts)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionUpdate)).
					Post("/{audienceID}/contacts", audienceHandler.AddContact)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionUpdate)).
					Post("/{audienceID}/contacts/{contactID}/unsubscribe", audienceHandler.UnsubscribeContact)
				r.With(middleware.RequirePermission(permissions.ResourceAudiences, permissions.ActionDelete)).
					Delete("/{audienceID}/contacts/{contactID}", audienceHandler.RemoveContact)
			})

			// Integrations
			r.Route("/integrations", func(r chi.Router) {
				r.With(middleware.RequirePermission(permissions.ResourceIntegrations, permissions.ActionRead)).
					Get("/", integrationHandler.Catalog)
				r.Route("/connections", func(r chi.Router) {
					r.With(middleware.RequirePermission(permissions.ResourceIntegrations, permissions.ActionRead)).
						Get("/", integrationHandler.ListConnections)
					r.With(middleware.RequirePermission(permissions.ResourceIntegrations, permissions.ActionCreate)).
						Post("/", integrationHandler.Connect)
					r.With(middleware.RequirePermission(permissions.ResourceIntegrations, permissions.ActionUpdate)).
						Put("/{connectionID}", integrationHandler.UpdateConnection)
					r.With(middleware.RequirePermission(permissions.ResourceIntegrations, permissions.ActionDelete)).
						Delete("/{connectionID}", integrationHandler.Disconnect)
				})
			})

			// Audit trail
			r.With(middleware.RequirePermission(permissions.ResourceLogs, permissions.ActionRead)).
				Get("/activity", activityHandler.List)

			// Analytics
			r.With(middleware.RequirePermission(permissions.ResourceAnalytics, permissions.ActionRead)).
				Get("/analytics/overview", analyticsHandler.Overview)
		})
	})

	return &Router{r}
}
