package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/eastbay-tutoring/scheduler-api/api/swagger"
	"github.com/eastbay-tutoring/scheduler-api/internal/calendar"
	"github.com/eastbay-tutoring/scheduler-api/internal/handler"
	"github.com/eastbay-tutoring/scheduler-api/internal/middleware"
	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	"github.com/eastbay-tutoring/scheduler-api/internal/repository"
	"github.com/eastbay-tutoring/scheduler-api/internal/service"
	"github.com/eastbay-tutoring/scheduler-api/pkg/cache"
	"github.com/eastbay-tutoring/scheduler-api/pkg/config"
	"github.com/eastbay-tutoring/scheduler-api/pkg/database"
	"github.com/eastbay-tutoring/scheduler-api/pkg/jobs"
	"github.com/eastbay-tutoring/scheduler-api/pkg/logger"
	corsmiddleware "github.com/eastbay-tutoring/scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/eastbay-tutoring/scheduler-api/pkg/middleware/requestid"
	"github.com/eastbay-tutoring/scheduler-api/pkg/storage"
)

// @title Tutoring Scheduler API
// @version 1.0.0
// @description Lesson booking and tutor availability service
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

	location, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid booking timezone", "timezone", cfg.Booking.Timezone, "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Cache.DefaultTTL, logr, false)
	}

	userRepo := repository.NewUserRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	childCourseRepo := repository.NewChildCourseRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	tutorSvc := service.NewTutorService(tutorRepo, logr)
	assignSvc := service.NewAssignmentService(tutorRepo, availabilityRepo, bookingRepo, childCourseRepo, logr)
	reconcileSvc := service.NewReconcileService(bookingRepo, tutorRepo, availabilityRepo, metricsSvc, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, reconcileSvc, cacheSvc, logr)
	calendarClient := calendar.NewClient(cfg.Calendar, logr)
	bookingSvc := service.NewBookingService(
		bookingRepo, childCourseRepo, assignSvc, calendarClient,
		validate, logr, metricsSvc, cacheSvc, cfg.Booking.MaxRecurringWeeks, location,
	)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Export.SignSecret, cfg.Export.ResultTTL)
	exportSvc := service.NewExportJobService(exportJobRepo, nil, bookingSvc, exportStore, exportSigner, service.ExportJobConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Export.ResultTTL,
		CleanupInterval: cfg.Export.CleanupInterval,
	}, logr)
	exportQueue := jobs.NewQueue("schedule_exports", exportSvc.Handle, jobs.QueueConfig{
		Workers: cfg.Export.Workers,
		Logger:  logr,
	})
	exportSvc.SetQueue(exportQueue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exportQueue.Start(ctx)
	defer exportQueue.Stop()
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	authHandler := handler.NewAuthHandler(authSvc)
	tutorHandler := handler.NewTutorHandler(tutorSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, tutorSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/slots/times", bookingHandler.AvailableTimes)

	protected.POST("/bookings", bookingHandler.Create)
	protected.GET("/bookings", bookingHandler.List)
	protected.GET("/bookings/export", bookingHandler.Export)
	protected.DELETE("/bookings/:id", bookingHandler.Cancel)
	protected.POST("/bookings/:id/meet-link", bookingHandler.AttachMeetLink)

	protected.POST("/export-jobs", exportHandler.CreateJob)
	protected.GET("/export-jobs/:id", exportHandler.JobStatus)
	// Download links are self-authorizing via the signed token.
	api.GET("/export/:token", exportHandler.Download)

	protected.GET("/tutors", tutorHandler.List)
	protected.GET("/tutors/:id", tutorHandler.Get)
	protected.GET("/tutors/:id/schedule", availabilityHandler.GetSchedule)
	protected.POST("/tutors/:id/schedule/toggle",
		middleware.RequireRoles(models.RoleAdmin, models.RoleTutor),
		availabilityHandler.ToggleSlot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
