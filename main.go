package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/config"
	"github.com/clearrate/clearrate-engine/pkg/database"
	"github.com/clearrate/clearrate-engine/pkg/handlers"
	"github.com/clearrate/clearrate-engine/pkg/lerg"
	"github.com/clearrate/clearrate-engine/pkg/logging"
	"github.com/clearrate/clearrate-engine/pkg/middleware"
	"github.com/clearrate/clearrate-engine/pkg/repositories"
	"github.com/clearrate/clearrate-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("lerg_base_url", cfg.LERG.BaseURL))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	cache := services.NewClassificationCache(redisClient, logger)

	repo := repositories.NewClassificationRepository(db)
	lergClient := lerg.NewClient(&cfg.LERG, logger)

	var seed services.SeedSource
	if cfg.LERG.SeedFallback {
		seedSource, err := lerg.NewSeedSource()
		if err != nil {
			logger.Fatal("Failed to load seed dataset", zap.Error(err))
		}
		seed = seedSource
		logger.Info("Seed fallback enabled", zap.Int("records", seedSource.Len()))
	}

	freshness := time.Duration(cfg.LERG.SyncFreshnessHours) * time.Hour
	syncService := services.NewSyncService(repo, lergClient, cache, freshness, logger)
	lookupService := services.NewLookupService(repo, lergClient, seed, logger)
	classificationService := services.NewClassificationService(lookupService, cache, logger)

	// A failed startup sync must not prevent serving: readers fall back
	// to the existing replica (or the seed dataset) until the provider
	// recovers.
	go func() {
		if err := syncService.Initialize(context.Background()); err != nil {
			logger.Warn("Initial sync failed, serving existing data", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	classificationHandler := handlers.NewClassificationHandler(classificationService, lookupService, syncService, logger)
	classificationHandler.RegisterRoutes(mux)

	adminHandler := handlers.NewAdminHandler(syncService, logger)
	adminHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting clearrate-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
