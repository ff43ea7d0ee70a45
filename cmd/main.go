package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rhythmrisk/catalog-service/internal/cache"
	"github.com/rhythmrisk/catalog-service/internal/config"
	"github.com/rhythmrisk/catalog-service/internal/events"
	"github.com/rhythmrisk/catalog-service/internal/handlers"
	"github.com/rhythmrisk/catalog-service/internal/metrics"
	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/processing"
	"github.com/rhythmrisk/catalog-service/internal/providers/aws"
	"github.com/rhythmrisk/catalog-service/internal/providers/gcp"
	"github.com/rhythmrisk/catalog-service/internal/providers/local"
	"github.com/rhythmrisk/catalog-service/internal/repository"
	"github.com/rhythmrisk/catalog-service/internal/repository/memory"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting Catalog Service")

	store := openStore(cfg, logger)

	storage, err := createStorageProvider(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create storage provider")
	}

	var redisCache cache.Cache
	if cfg.Cache.Enabled {
		redisCache, err = cache.NewRedisCache(cache.RedisConfig{
			Host:     cfg.Cache.Host,
			Port:     cfg.Cache.Port,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			PoolSize: cfg.Cache.PoolSize,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis, continuing without cache")
			redisCache = cache.NewNoOpCache()
		}
	} else {
		logger.Info("Cache disabled by configuration")
		redisCache = cache.NewNoOpCache()
	}
	defer redisCache.Close()

	publisher, err := events.NewPublisher(cfg.Events.NATSURL, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize events publisher, events won't be published")
	}
	defer publisher.Close()

	m := metrics.New(nil)

	pipeline := processing.NewPipeline(store, storage, publisher, m, processing.Config{
		Workers:    cfg.Processing.Workers,
		QueueSize:  cfg.Processing.QueueSize,
		StageDelay: cfg.StageDelay(),
	}, logger)
	pipeline.Start()

	sweeper := processing.NewSweeper(store, cfg.SweepInterval(), logger)
	sweeper.Start()

	jwtService := service.NewJWTService(cfg.Auth.JWTSecret, cfg.TokenExpiry())
	authService := service.NewAuthService(store, jwtService, cfg.Auth.AllowRegistration, logger)
	entityService := service.NewEntityService(store, publisher, logger)
	documentService := service.NewDocumentService(store, storage, pipeline, publisher, logger)
	dashboardService := service.NewDashboardService(store)
	analyticsService := service.NewAnalyticsService(store, redisCache, logger)

	router := setupRouter(cfg, logger, m, jwtService, routerHandlers{
		auth:      handlers.NewAuthHandler(authService, logger),
		entities:  handlers.NewEntityHandler(entityService, logger),
		documents: handlers.NewDocumentHandler(documentService, logger),
		dashboard: handlers.NewDashboardHandler(dashboardService, logger),
		analytics: handlers.NewAnalyticsHandler(analyticsService, logger),
		health:    handlers.NewHealthHandler(store, storage, publisher, logger),
	})

	server := &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.GetAddr()).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	sweeper.Stop()
	if err := pipeline.Stop(ctx); err != nil {
		logger.WithError(err).Error("Processing pipeline did not drain cleanly")
	}

	logger.Info("Server exited")
}

// setupLogger configures the application logger
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	switch cfg.Logging.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// openStore connects to postgres, or falls back to the in-memory store
// when in_memory is configured or the database is unreachable. The
// fallback keeps development and demo deployments running without any
// infrastructure; data does not survive a restart.
func openStore(cfg *config.Config, logger *logrus.Logger) models.Store {
	if cfg.Database.InMemory {
		logger.Warn("Using in-memory store, data will not persist across restarts")
		return memory.NewStore()
	}

	db, err := connectDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Database unavailable, falling back to in-memory store")
		return memory.NewStore()
	}

	store := repository.NewStore(db)
	if err := store.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}
	logger.Info("Database migrations completed")

	return store
}

// connectDatabase establishes the postgres connection
func connectDatabase(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database")
	return db, nil
}

// createStorageProvider creates the configured blob storage provider
func createStorageProvider(cfg *config.Config, logger *logrus.Logger) (models.StorageProvider, error) {
	ctx := context.Background()

	switch cfg.Storage.Provider {
	case "aws":
		return aws.NewS3Provider(ctx, aws.Config{
			Region:          cfg.Storage.AWS.Region,
			Bucket:          cfg.Storage.AWS.Bucket,
			Endpoint:        cfg.Storage.AWS.Endpoint,
			ForcePathStyle:  cfg.Storage.AWS.ForcePathStyle,
			AccessKeyID:     cfg.Storage.AWS.AccessKeyID,
			SecretAccessKey: cfg.Storage.AWS.SecretAccessKey,
		}, logger)
	case "gcp":
		return gcp.NewGCSProvider(ctx, gcp.Config{
			ProjectID:       cfg.Storage.GCP.ProjectID,
			Bucket:          cfg.Storage.GCP.Bucket,
			CredentialsFile: cfg.Storage.GCP.CredentialsFile,
		}, logger)
	case "local":
		logger.Info("Using local filesystem storage provider")
		return local.NewLocalProvider(cfg.Storage.Local.BasePath, logger)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

type routerHandlers struct {
	auth      *handlers.AuthHandler
	entities  *handlers.EntityHandler
	documents *handlers.DocumentHandler
	dashboard *handlers.DashboardHandler
	analytics *handlers.AnalyticsHandler
	health    *handlers.HealthHandler
}

// setupRouter configures the HTTP router
func setupRouter(cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics, jwtService *service.JWTService, h routerHandlers) *gin.Engine {
	if os.Getenv("GO_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(m.RequestMiddleware())

	if cfg.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		if len(cfg.CORS.AllowedOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
		} else {
			corsConfig.AllowAllOrigins = true
		}
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		router.Use(cors.New(corsConfig))
	}

	health := router.Group("/health")
	{
		health.GET("", h.health.Health)
		health.GET("/ready", h.health.Ready)
		health.GET("/live", h.health.Live)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.auth.Register)
		auth.POST("/login", h.auth.Login)
		auth.GET("/me", middleware.AuthMiddleware(jwtService, logger), h.auth.Me)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		entities := api.Group("/entities")
		{
			entities.POST("/", h.entities.Create)
			entities.GET("/", h.entities.List)
			entities.GET("/:id", h.entities.Get)
			entities.PUT("/:id", h.entities.Update)
			entities.DELETE("/:id", h.entities.Delete)
			entities.GET("/:id/stats", h.entities.Stats)
		}

		documents := api.Group("/documents")
		{
			documents.POST("/upload", h.documents.Upload)
			documents.GET("/", h.documents.List)
			documents.GET("/:id", h.documents.Get)
			documents.GET("/:id/status", h.documents.Status)
			documents.GET("/:id/data", h.documents.Data)
			documents.POST("/:id/reprocess", h.documents.Reprocess)
			documents.PATCH("/:id/entity", h.documents.Reassign)
			documents.DELETE("/:id", h.documents.Delete)
		}

		api.GET("/dashboard/stats", h.dashboard.Stats)

		analytics := api.Group("/analytics")
		{
			analytics.GET("/premium-summary/:entity_id", h.analytics.PremiumSummary)
			analytics.GET("/premium-towers/:entity_id", h.analytics.PremiumTowers)
			analytics.GET("/visualization-data/:entity_id", h.analytics.VisualizationData)
			analytics.GET("/organization-premium-overview", h.analytics.OrganizationOverview)
			analytics.POST("/refresh-cache/:entity_id", h.analytics.RefreshCache)
		}
	}

	return router
}
