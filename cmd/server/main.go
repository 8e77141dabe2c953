package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/config"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/crypto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/queue"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting API server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient = nil
	}

	// Membership cache backend
	var membershipCache cache.Cache
	if cfg.Cache.Backend == "redis" && redisClient != nil {
		membershipCache = cache.NewRedis(redisClient)
	} else {
		membershipCache = cache.NewMemory(cfg.Cache.MaxEntries)
	}

	// Asynq client for background job enqueuing
	var asynqClient *asynq.Client
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
	}

	// Initialize services
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry(), cfg.JWT.RefreshExpiry())
	if err != nil {
		logger.Error("failed to create JWT service", "error", err)
		os.Exit(1)
	}
	orgService := organizations.NewService(db, membershipCache, logger)
	authService := auth.NewService(db, jwtService, orgService, logger)
	recorder := activity.NewRecorder(db, asynqClient, logger)

	// Encryptor for integration credential storage
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - credentials will be lost on restart")
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:            db,
		Redis:         redisClient,
		Logger:        logger,
		JWTService:    jwtService,
		AuthService:   authService,
		OrgService:    orgService,
		Recorder:      recorder,
		Encryptor:     encryptor,
		AsynqClient:   asynqClient,
		RateLimitReqs: cfg.RateLimit.Requests,
		RateLimitSecs: cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
