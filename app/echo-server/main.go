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

	httpmetrics "myMarketplace/app/echo-server/metrics"
	"myMarketplace/app/echo-server/router"
	"myMarketplace/business/activity"
	"myMarketplace/business/analytics"
	"myMarketplace/business/bundle"
	"myMarketplace/business/feedback"
	"myMarketplace/business/profile"
	"myMarketplace/business/recommendation"
	"myMarketplace/internal/middleware"
	psqlRepo "myMarketplace/internal/repository/postgres"
	redisRepo "myMarketplace/internal/repository/redis"
	"myMarketplace/internal/rest"
	"myMarketplace/pkg/config"
	"myMarketplace/pkg/database"
	redisClient "myMarketplace/pkg/database/redis"
	"myMarketplace/pkg/logger"
	"myMarketplace/pkg/metrics"
	"myMarketplace/pkg/supervisor"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	defer logger.Sync()
	logger.Info("Starting personalization engine", "name", cfg.App.Name, "version", cfg.App.Version)

	metrics.Init()
	httpmetrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", "error", err)
	}

	logger.Info("Database connected successfully")

	// Profile cache is optional; without Redis every read goes to Postgres.
	var profileCache profile.ProfileCache
	if cfg.Redis.Enabled {
		rdb, err := redisClient.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, profile cache disabled", "error", err)
		} else {
			defer func() {
				if err := redisClient.CloseRedisClient(rdb); err != nil {
					logger.Error("Failed to close redis", "error", err)
				}
			}()
			profileCache = redisRepo.NewProfileCache(rdb)
			logger.Info("Redis connected successfully")
		}
	}

	p := cfg.Personalization

	// Init repo
	activityRepo := psqlRepo.NewActivityRepository(db)
	catalogRepo := psqlRepo.NewCatalogRepository(db)
	profileRepo := psqlRepo.NewProfileRepository(db)
	feedbackRepo := psqlRepo.NewFeedbackLogRepository(db)

	// Init service
	profileService := profile.NewProfileService(activityRepo, profileRepo, profileCache, p.ProfileWindowDays, p.ProfileCacheTTL)
	refreshQueue := profile.NewRefreshQueue(p.RefreshQueueSize)
	feedbackService := feedback.NewFeedbackService(feedbackRepo)
	activityService := activity.NewActivityService(activityRepo, refreshQueue, feedbackService, p.ProfileWindowDays)
	recommendationService := recommendation.NewRecommendationService(
		profileService, catalogRepo, activityRepo, feedbackService,
		recommendation.Config{
			MaxLimit: p.MaxRecommendations,
			BatchTTL: p.RecommendationTTL,
			Timeout:  p.RequestTimeout,
		},
	)
	bundleConfig := bundle.Config{
		MaxLimit:          p.MaxRecommendations,
		BatchTTL:          p.RecommendationTTL,
		Timeout:           p.RequestTimeout,
		PromoPriceFloor:   p.PromoPriceFloor,
		UpsellPriceFloor:  p.UpsellPriceFloor,
		UpsellGlobalFloor: p.UpsellGlobalFloor,
	}
	bundleService := bundle.NewBundleService(profileService, feedbackService, bundle.Registry(catalogRepo, bundleConfig), bundleConfig)
	analyticsService := analytics.NewAnalyticsService(profileService, activityRepo, feedbackService, p.ProfileWindowDays)

	// Init handler
	handler := rest.NewPersonalizationHandler(
		activityService, recommendationService, bundleService, feedbackService, analyticsService, profileService, 10*time.Second,
	)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.TraceID())
	e.Use(httpmetrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	authRequired := middleware.AuthMiddleware(cfg.JWT.SecretKey)
	optionalAuth := middleware.OptionalAuth(cfg.JWT.SecretKey)

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupActivityRoutes(api, handler, optionalAuth)
	router.SetupRecommendationRoutes(api, handler, optionalAuth)
	router.SetupFeedbackRoutes(api, handler, optionalAuth)
	router.SetupUserRoutes(api, handler, authRequired, middleware.SelfOrAdmin(), middleware.AdminOnly())
	router.SetupMetricsRoute(e)

	// Supervision: refresh workers and the HTTP server restart independently.
	tree := supervisor.NewTree("personalization", supervisor.DefaultTreeConfig())
	for i := 0; i < p.RefreshWorkers; i++ {
		tree.AddWorker(profile.NewRefreshWorker(i+1, refreshQueue, profileService, p.RefreshJobTimeout))
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Server starting", "address", addr, "refresh_workers", p.RefreshWorkers)
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		if err := <-errCh; err != nil && ctx.Err() == nil {
			logger.Error("Supervisor stopped with error", "error", err)
		}
	case err := <-errCh:
		logger.Error("Supervisor stopped unexpectedly", "error", err)
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logger.Warn("Services did not stop in time", "count", len(unstopped))
	}

	logger.Info("Server stopped", "pending_refresh_jobs", refreshQueue.Len())
}
