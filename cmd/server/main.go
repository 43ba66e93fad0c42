package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/cache"
	"github.com/parkpal-server/internal/config"
	"github.com/parkpal-server/internal/handler"
	"github.com/parkpal-server/internal/mailer"
	"github.com/parkpal-server/internal/middleware"
	"github.com/parkpal-server/internal/models"
	"github.com/parkpal-server/internal/queue"
	"github.com/parkpal-server/internal/realtime"
	"github.com/parkpal-server/internal/repository"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := middleware.InitLogger(cfg.Log.Dir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis
	rdb := initRedis(cfg)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		middleware.LogError("Redis unreachable at startup, cache and jobs degraded: %v", err)
	}

	// Auto migrate database
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	lotRepo := repository.NewLotRepository(db)
	spotRepo := repository.NewSpotRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	// Infrastructure
	readCache := cache.New(rdb, "", cfg.Cache.TTL)
	jobQueue := queue.NewRedisQueue(rdb, cfg.Worker.QueueKey)
	hub := realtime.NewHub()

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWT, readCache)
	parkingService := service.NewParkingService(
		db,
		userRepo,
		locationRepo,
		lotRepo,
		spotRepo,
		reservationRepo,
		jobQueue,
		hub,
		readCache,
	)
	queryService := service.NewQueryService(userRepo, locationRepo, lotRepo, spotRepo, reservationRepo, readCache)
	userService := service.NewUserService(userRepo, readCache)

	created, err := authService.EnsureAdmin(cfg.Admin.Password)
	if err != nil {
		log.Fatalf("Failed to bootstrap admin: %v", err)
	}
	if created {
		middleware.LogInfo("Admin account created")
	}

	// Notification workers
	renderer, err := mailer.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to parse mail templates: %v", err)
	}
	sender := mailer.NewSMTPSender(cfg.Mail.Server, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	notifier := worker.NewNotifier(userRepo, lotRepo, spotRepo, reservationRepo, sender, renderer)

	pool := worker.NewPool(jobQueue, cfg.Worker.Concurrency)
	notifier.Register(pool)
	pool.Start()

	scheduler := worker.NewScheduler(jobQueue, cfg.Worker.ReminderInterval, cfg.Worker.ReportInterval)
	scheduler.Start()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	parkingHandler := handler.NewParkingHandler(queryService, readCache, hub)
	adminHandler := handler.NewAdminHandler(parkingService, queryService, userService)
	userHandler := handler.NewUserHandler(parkingService, queryService, userService)

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     status,
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
			"ws_clients": hub.ClientCount(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		authMiddleware := middleware.AuthMiddleware(authService)

		authHandler.RegisterRoutes(v1, authMiddleware)
		parkingHandler.RegisterRoutes(v1, authMiddleware)
		adminHandler.RegisterRoutes(v1, authMiddleware)
		userHandler.RegisterRoutes(v1, authMiddleware)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		middleware.LogInfo("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	middleware.LogInfo("Shutting down server...")

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	pool.Stop()
	hub.Close()

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		middleware.LogError("Error closing Redis connection: %v", err)
	}

	middleware.LogInfo("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}
	gormConfig := &gorm.Config{
		Logger: gormLogger,
	}

	if cfg.Database.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			return nil, err
		}
		db, err := gorm.Open(sqlite.Open(cfg.Database.Path+"?_foreign_keys=on"), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), gormConfig)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Location{},
		&models.ParkingLot{},
		&models.ParkingSpot{},
		&models.ReservedParking{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
