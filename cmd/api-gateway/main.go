package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/behavior-tracker-api/api/swagger"
	"github.com/noah-isme/behavior-tracker-api/internal/handler"
	"github.com/noah-isme/behavior-tracker-api/internal/repository"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
	"github.com/noah-isme/behavior-tracker-api/pkg/cache"
	"github.com/noah-isme/behavior-tracker-api/pkg/config"
	"github.com/noah-isme/behavior-tracker-api/pkg/database"
	"github.com/noah-isme/behavior-tracker-api/pkg/jobs"
	"github.com/noah-isme/behavior-tracker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/behavior-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/behavior-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/behavior-tracker-api/pkg/storage"
)

// @title Behavior Tracker API
// @version 1.0.0
// @description School behavior logging, risk aggregation and exports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, risk cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()

	behaviorRepo := repository.NewBehaviorRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc,
		cfg.Risk.CacheTTL,
		logr,
		cfg.Risk.CacheEnabled && redisClient != nil,
	)

	riskSvc := service.NewRiskService(behaviorRepo, cacheSvc, metricsSvc, logr, service.RiskServiceConfig{
		DefaultRange: cfg.Risk.DefaultRange,
		CacheTTL:     cfg.Risk.CacheTTL,
		PageSize:     cfg.Exports.PageSize,
	})
	exportSvc := service.NewExportService(behaviorRepo, studentRepo, classRepo, metricsSvc, logr, service.ExportConfig{
		MaxRows:  cfg.Exports.MaxRows,
		PageSize: cfg.Exports.PageSize,
	})
	roomSvc := service.NewRoomService(roomRepo, metricsSvc, logr)
	messageSvc := service.NewMessageService(repository.NewMessageRepository(db), roomSvc, validate, logr)
	behaviorSvc := service.NewBehaviorService(behaviorRepo, cacheSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	schoolSvc := service.NewSchoolService(repository.NewSchoolRepository(db), validate, logr)
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, logr)

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare report storage", zap.Error(err))
	}
	reportSvc := service.NewReportService(
		reportStore,
		storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		riskSvc,
		exportSvc,
		metricsSvc,
		logr,
		service.ReportServiceConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Reports.ResultTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		},
	)
	reportQueue := jobs.NewQueue("reports", reportSvc.HandleJob, jobs.QueueConfig{
		Workers:     cfg.Reports.WorkerConcurrency,
		MaxRetries:  cfg.Reports.WorkerRetries,
		Logger:      logr,
		OnExhausted: reportSvc.OnJobExhausted,
	})
	reportSvc.SetQueue(reportQueue)
	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportSvc.StartCleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.RegisterRoutes(r, handler.RouterConfig{
		APIPrefix: cfg.APIPrefix,
		Auth:      authSvc,
		Metrics:   metricsSvc,
		Audit:     repository.NewAuditRepository(db),
		Logger:    logr,
	}, handler.Handlers{
		Metrics:  handler.NewMetricsHandler(metricsSvc, db),
		Risk:     handler.NewRiskHandler(riskSvc, exportSvc),
		Exports:  handler.NewExportHandler(exportSvc, cfg.Risk.DefaultRange),
		Rooms:    handler.NewRoomHandler(roomSvc, messageSvc),
		Behavior: handler.NewBehaviorHandler(behaviorSvc),
		Schools:  handler.NewSchoolHandler(schoolSvc),
		Students: handler.NewStudentHandler(studentSvc),
		Classes:  handler.NewClassHandler(classSvc),
		Reports:  handler.NewReportHandler(reportSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logr.Info("shutdown requested", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
