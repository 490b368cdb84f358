package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apiwatch/apiwatch/internal/config"
	"github.com/apiwatch/apiwatch/internal/handler"
	"github.com/apiwatch/apiwatch/internal/live"
	"github.com/apiwatch/apiwatch/internal/middleware"
	"github.com/apiwatch/apiwatch/internal/pkg/logger"
	"github.com/apiwatch/apiwatch/internal/repository"
	"github.com/apiwatch/apiwatch/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("✅ Connected to PostgreSQL")

	eventRepo := repository.NewPostgresEventRepo(db)
	configRepo := repository.NewPostgresConfigRepo(db)

	// Live feed storage (Redis > Memory)
	var recentStore live.RecentStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			recentStore = repository.NewRedisLiveFeed(redisClient, cfg.Redis.LiveListKey, cfg.Redis.LiveListMax)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, live feed will be memory-only", "error", err)
		}
	}
	if recentStore == nil {
		recentStore = live.NewMemoryFeed(cfg.Redis.LiveListMax)
	}

	// 3. Initialize Core Services
	hub := live.NewHub(recentStore)
	tracker := service.NewTracker(eventRepo, configRepo, hub)
	analytics := service.NewAnalytics(eventRepo, configRepo)

	retention := service.NewRetention(eventRepo, cfg.Database.EventRetentionDays, cfg.Database.CleanupIntervalMinutes)
	retention.Start()

	collectorLimiter := middleware.NewCollectorLimiter(cfg.Collector.QPS, cfg.Collector.Burst)

	// 4. Initialize Handlers
	trackHandler := handler.NewTrackHandler(tracker, analytics)
	configHandler := handler.NewConfigHandler(tracker)
	analyticsHandler := handler.NewAnalyticsHandler(analytics)
	liveHandler := handler.NewLiveHandler(hub)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.APIKeyMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "apiwatch"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/track", middleware.RateLimitMiddleware(collectorLimiter), trackHandler.Track)
		api.GET("/requestCount", trackHandler.RequestCount)

		api.GET("/config", configHandler.GetOrCreate)
		api.POST("/config", configHandler.Update)
		api.GET("/setconfig/:apiKey", configHandler.Fetch)

		api.GET("/unique-routes", analyticsHandler.UniqueRoutes)
		api.GET("/all", analyticsHandler.MonthlyEvents)
		api.GET("/alls", analyticsHandler.AllEvents)
		api.GET("/metric", analyticsHandler.Metrics)
		api.GET("/graph", analyticsHandler.Graph)

		api.GET("/live", liveHandler.Stream)
		api.GET("/live/recent", liveHandler.Recent)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 apiwatch collector started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	retention.Stop()
	hub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
