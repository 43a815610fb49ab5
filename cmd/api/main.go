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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/reco-letter-api/api/swagger"
	"github.com/noah-isme/reco-letter-api/internal/handler"
	"github.com/noah-isme/reco-letter-api/internal/middleware"
	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/internal/repository"
	"github.com/noah-isme/reco-letter-api/internal/scheduler"
	"github.com/noah-isme/reco-letter-api/internal/service"
	"github.com/noah-isme/reco-letter-api/pkg/cache"
	"github.com/noah-isme/reco-letter-api/pkg/config"
	"github.com/noah-isme/reco-letter-api/pkg/database"
	"github.com/noah-isme/reco-letter-api/pkg/jobs"
	"github.com/noah-isme/reco-letter-api/pkg/logger"
	"github.com/noah-isme/reco-letter-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/reco-letter-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/reco-letter-api/pkg/middleware/requestid"
	"github.com/noah-isme/reco-letter-api/pkg/storage"
)

// @title Recommendation Letter API
// @version 1.0.0
// @description Recommendation request and letter fulfillment service
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, summary cache disabled", "error", err)
		redisClient = nil
	}

	gateway, err := storage.NewS3Gateway(ctx, cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("failed to init object storage", "error", err)
	}

	var sender mailer.Mailer
	switch cfg.Mailer.Provider {
	case "ses":
		sender, err = mailer.NewSESMailer(ctx, cfg.Mailer)
		if err != nil {
			logr.Sugar().Fatalw("failed to init ses mailer", "error", err)
		}
	default:
		sender = mailer.NewLogMailer(logr)
	}

	queue := jobs.NewEmailQueue(sender, jobs.QueueConfig{
		Workers:    cfg.Mailer.Workers,
		MaxRetries: cfg.Mailer.MaxRetries,
		RetryDelay: cfg.Mailer.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	metricsSvc := service.NewMetricsService()

	requestRepo := repository.NewRequestRepository(db).WithMetrics(metricsSvc)
	recipientRepo := repository.NewRecipientRepository(db)
	letterRepo := repository.NewLetterRepository(db).WithMetrics(metricsSvc)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	tokenSvc := service.NewTokenService(requestRepo, recipientRepo, logr)
	notificationSvc := service.NewNotificationService(queue, metricsSvc, cfg.Portal.LinkBase, logr)
	dashboardSvc := service.NewDashboardService(requestRepo, cacheRepo, logr, cfg.Dashboard.CacheTTL)
	recipientSvc := service.NewRecipientService(recipientRepo, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, recipientRepo, letterRepo, tokenSvc, notificationSvc, dashboardSvc, validate, logr, service.RequestServiceConfig{
		TokenTTL:         cfg.Portal.TokenTTL,
		DefaultIntervals: cfg.Reminders.DefaultIntervals,
	})
	letterSvc := service.NewLetterService(letterRepo, requestRepo, tokenSvc, gateway, dashboardSvc, validate, logr, service.LetterServiceConfig{
		UploadURLTTL:   cfg.Storage.UploadURLTTL,
		ViewURLTTL:     cfg.Storage.ViewURLTTL,
		VersionRetries: cfg.Letters.VersionRetries,
	})
	reminderSvc := service.NewReminderService(requestRepo, recipientRepo, notificationSvc, logr, cfg.Reminders.ScanBatchSize)
	reportSvc := service.NewReportService(requestRepo, logr)

	schedOpts := []scheduler.Option{
		scheduler.WithScanSchedule(cfg.Reminders.CronSpec),
		scheduler.WithMetrics(metricsSvc),
	}
	if !cfg.Reminders.Enabled {
		schedOpts = append(schedOpts, scheduler.Disabled())
	}
	sched := scheduler.New(reminderSvc, logr, schedOpts...)
	if err := sched.Start(); err != nil {
		logr.Sugar().Fatalw("failed to start reminder scheduler", "error", err)
	}
	defer sched.Stop()

	requestHandler := handler.NewRequestHandler(requestSvc, letterSvc, dashboardSvc)
	recipientHandler := handler.NewRecipientHandler(recipientSvc)
	letterHandler := handler.NewLetterHandler(letterSvc)
	portalHandler := handler.NewPortalHandler(tokenSvc, requestSvc, letterSvc, metricsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

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
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	portal := r.Group("/portal/:token")
	{
		portal.GET("", portalHandler.View)
		portal.POST("/acknowledge", portalHandler.Acknowledge)
		portal.POST("/upload", portalHandler.Upload)
		portal.POST("/upload-fallback", portalHandler.UploadFallback)
		portal.POST("/submit", portalHandler.Submit)
		portal.GET("/view", portalHandler.ViewFile)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		requests := api.Group("/requests")
		{
			requests.GET("", requestHandler.List)
			requests.POST("", requestHandler.Create)
			requests.GET("/summary", requestHandler.Summary)
			requests.GET("/:id", requestHandler.Get)
			requests.DELETE("/:id", requestHandler.Cancel)
			requests.POST("/:id/send", requestHandler.Send)
			requests.GET("/:id/letters", requestHandler.Letters)
			requests.GET("/:id/letters/download", requestHandler.Download)
		}

		recipients := api.Group("/recipients")
		{
			recipients.GET("", recipientHandler.List)
			recipients.POST("", recipientHandler.Create)
			recipients.GET("/:id", recipientHandler.Get)
			recipients.PUT("/:id", recipientHandler.Update)
			recipients.DELETE("/:id", recipientHandler.Delete)
		}

		admin := api.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/letters/:id/verify", letterHandler.Verify)
			admin.GET("/reports/overdue", reportHandler.Overdue)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
