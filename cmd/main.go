package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/internal/logger"
	"rfp-intake-platform/internal/queue"
	"rfp-intake-platform/internal/telemetry"
	"rfp-intake-platform/middleware"
	"rfp-intake-platform/routes"
	"rfp-intake-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Tracing is opt-in; metrics are always on.
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("rfp-intake-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracing:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	db := mongoClient.Database(cfg.DBName)
	rfpStore := services.NewRfpStore(db.Collection("rfps"))
	settingsService := services.NewSettingsService(db.Collection("app_settings"))
	userStore := services.NewMongoUserStore(db.Collection("users"))

	authService := services.NewAuthService(cfg, userStore, services.NewRedisTokenIssuer(rdb))

	asynqClient := asynq.NewClient(queue.RedisConnOpt(cfg))
	defer asynqClient.Close()

	extractionClient := services.NewExtractionClient(cfg, metrics)
	extractor := services.NewDocumentExtractor(cfg, extractionClient)
	intake := services.NewIntakeService(cfg, settingsService, rfpStore, extractor, queue.NewQueueEnqueuer(asynqClient), metrics)

	reconciler := services.NewReconciler(cfg, rfpStore, intake)
	if err := reconciler.Start(); err != nil {
		log.Fatal("Failed to start reconciler:", err)
	}
	defer reconciler.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Refresh-Token", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMW := middleware.NewAuthMiddleware(cfg, rdb)

	routes.SetupAuthRoutes(router, cfg, authService, authMW, rdb)
	routes.SetupSettingsRoutes(router, settingsService, authMW)
	routes.SetupRfpRoutes(router, intake, rfpStore, authMW)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
