package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/94R1K/student-metrics-backend/internal/handler"
	"github.com/94R1K/student-metrics-backend/internal/middleware"
	"github.com/94R1K/student-metrics-backend/internal/models"
	"github.com/94R1K/student-metrics-backend/internal/repository"
	"github.com/94R1K/student-metrics-backend/internal/service"
	"github.com/94R1K/student-metrics-backend/pkg/cache"
	"github.com/94R1K/student-metrics-backend/pkg/clickhouse"
	"github.com/94R1K/student-metrics-backend/pkg/config"
	"github.com/94R1K/student-metrics-backend/pkg/database"
	"github.com/94R1K/student-metrics-backend/pkg/logger"
	corsmiddleware "github.com/94R1K/student-metrics-backend/pkg/middleware/cors"
	reqidmiddleware "github.com/94R1K/student-metrics-backend/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	chClient := clickhouse.New(cfg.ClickHouse)

	validate := validator.New()

	eventRepo := repository.NewEventRepository(chClient, cfg.ClickHouse.EventsTable)
	metricRepo := repository.NewMetricRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	telemetry := service.NewTelemetryService()
	cacheService := service.NewCacheService(cacheRepo, telemetry, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)
	executor := service.NewMetricQueryExecutor(eventRepo, telemetry)
	engine := service.NewMetricsEngine(executor, metricRepo, cacheService, validate, logr)
	collector := service.NewEventCollectorService(eventRepo, validate, logr)
	analytics := service.NewAnalyticsService(metricRepo, cacheService, logr)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "student-metrics-backend",
	})

	sweeper := service.NewTokenSweeper(userRepo, cfg.Auth.TokenSweepInterval, logr)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	eventHandler := handler.NewEventHandler(collector, telemetry)
	metricsHandler := handler.NewMetricsHandler(engine)
	analyticsHandler := handler.NewAnalyticsHandler(analytics)
	authHandler := handler.NewAuthHandler(authService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Telemetry(telemetry))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		api.POST("/events", eventHandler.Ingest)
		api.POST("/metrics/calculate", metricsHandler.Calculate)

		gated := api.Group("")
		gated.Use(middleware.JWT(authService))
		gated.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
		{
			gated.GET("/metrics/user/:id", analyticsHandler.UserMetrics)
			gated.GET("/analytics/course/:id", analyticsHandler.CourseAggregates)
			gated.GET("/analytics/course/:id/export", analyticsHandler.ExportCourseAggregates)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
