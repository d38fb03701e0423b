package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/astromatch/astromatch/internal/api"
	"github.com/astromatch/astromatch/internal/cache"
	"github.com/astromatch/astromatch/internal/compat"
	"github.com/astromatch/astromatch/internal/config"
	"github.com/astromatch/astromatch/internal/database"
	"github.com/astromatch/astromatch/internal/notification"
	"github.com/astromatch/astromatch/internal/services"
	"github.com/astromatch/astromatch/internal/telemetry"
)

const serviceName = "astromatch-api"

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := telemetry.InitGlobalLogger(&telemetry.LogConfig{
		Level:  telemetry.LogLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.LogFromContext(ctx)

	otelShutdown, err := telemetry.InitializeOpenTelemetry(ctx, telemetry.LoadConfigFromEnv())
	if err != nil {
		logger.WithError(err).Warn("OpenTelemetry initialization failed, continuing without tracing")
	} else {
		defer otelShutdown()
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewInstrumentedConnection(database.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	redisSvc, err := cache.NewInstrumentedRedisService(&cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to redis")
		os.Exit(1)
	}
	defer redisSvc.Close()

	// The user service is both the profile read model and the profile source
	// for the scorer, so it is constructed twice: once without the score
	// cache to feed the scorer, and once with it for invalidation on writes.
	profileSource := services.NewUserService(db, nil)
	scorer := compat.NewScorer(profileSource, cfg.ComputeBudget)
	compatCache := compat.NewCache(redisSvc, scorer, cfg.ScoreTTL)
	userService := services.NewUserService(db, compatCache)

	notifications := notification.NewQueue(notification.LogSender{}, 256)
	defer notifications.Close()

	exclusionService := services.NewExclusionService(db, redisSvc, cfg.ExclusionTTL)
	discoveryService := services.NewDiscoveryService(db, exclusionService, compatCache)
	ledger := services.NewProgressLedger(db)
	matchService := services.NewMatchService(db, compatCache, ledger, exclusionService, notifications)
	requestService := services.NewRequestService(db, compatCache, matchService, exclusionService, notifications, cfg.MatchRequestTTL)
	inviteService := services.NewInviteService(db, cfg.Invites.FreeDailyQuota, cfg.Invites.PremiumDailyQuota)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	requestService.StartExpirySweep(sweepCtx, time.Hour)

	server := api.NewServer(api.Config{
		Users:     userService,
		Discovery: discoveryService,
		Scorer:    compatCache,
		Requests:  requestService,
		Matches:   matchService,
		Invites:   inviteService,
		Edges:     exclusionService,
		Health: map[string]api.HealthChecker{
			"database": db,
			"redis":    redisSvc,
		},
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(serviceName),
	}

	go func() {
		logger.Infof("Starting API server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Server exited")
}
