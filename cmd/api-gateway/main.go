package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tidyshare/tidyshare-api/api/swagger"
	"github.com/tidyshare/tidyshare-api/internal/classifier"
	"github.com/tidyshare/tidyshare-api/internal/graph"
	"github.com/tidyshare/tidyshare-api/internal/handler"
	"github.com/tidyshare/tidyshare-api/internal/middleware"
	"github.com/tidyshare/tidyshare-api/internal/repository"
	"github.com/tidyshare/tidyshare-api/internal/service"
	"github.com/tidyshare/tidyshare-api/pkg/cache"
	"github.com/tidyshare/tidyshare-api/pkg/config"
	"github.com/tidyshare/tidyshare-api/pkg/database"
	"github.com/tidyshare/tidyshare-api/pkg/logger"
	corsmiddleware "github.com/tidyshare/tidyshare-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tidyshare/tidyshare-api/pkg/middleware/requestid"
)

// @title TidyShare API
// @version 0.1.0
// @description SharePoint library crawler and cleanup suggestion engine
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, token caching disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	userRepo := repository.NewUserRepository(db)
	credRepo := repository.NewCredentialRepository(db)
	scanRepo := repository.NewScanRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	actionRepo := repository.NewActionRepository(db)

	metricsSvc := service.NewMetricsService()

	tokens := graph.NewTokenSource(credRepo, redisClient, logr, cfg.Graph)
	graphClient := graph.NewClient(tokens, metricsSvc, logr, cfg.Graph)
	classifierClient := classifier.NewClient(cfg.Classifier)

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "tidyshare-api",
	})
	crawlSvc := service.NewCrawlService(scanRepo, queueRepo, inventoryRepo, graphClient, metricsSvc, logr, service.CrawlServiceConfig{
		BatchSize:  cfg.Crawler.BatchSize,
		StaleAfter: cfg.Crawler.StaleAfter,
	})
	rulesSvc := service.NewRulesService(logr)
	aiSvc := service.NewAIService(classifierClient, metricsSvc, cfg.Classifier.ChunkSize, logr)
	analysisSvc := service.NewAnalysisService(scanRepo, inventoryRepo, suggestionRepo, rulesSvc, aiSvc, logr, service.AnalysisServiceConfig{
		InsertChunkSize: cfg.Suggestions.InsertChunkSize,
	})
	suggestionSvc := service.NewSuggestionService(suggestionRepo, scanRepo, actionRepo, logr)
	exportSvc := service.NewExportService(scanRepo, suggestionRepo, nil, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	scanHandler := handler.NewScanHandler(crawlSvc, analysisSvc)
	suggestionHandler := handler.NewSuggestionHandler(suggestionSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/scans", scanHandler.Start)
	authed.GET("/scans", scanHandler.List)
	authed.GET("/scans/:id", scanHandler.Poll)
	authed.POST("/scans/:id/analyze", scanHandler.Analyze)
	authed.GET("/scans/:id/suggestions", suggestionHandler.List)
	authed.GET("/scans/:id/suggestions/export", suggestionHandler.Export)
	authed.GET("/scans/:id/actions", suggestionHandler.History)
	authed.PUT("/suggestions/:id/decision", suggestionHandler.Decide)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pump *service.CrawlPump
	if cfg.Crawler.Background {
		pump = service.NewCrawlPump(scanRepo, crawlSvc, logr, service.CrawlPumpConfig{
			Interval:    cfg.Crawler.PumpInterval,
			Concurrency: cfg.Crawler.PumpConcurrency,
		})
		if err := pump.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start crawl pump", "error", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	if pump != nil {
		pump.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
