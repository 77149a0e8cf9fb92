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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/institute-grading-api/api/swagger"
	"github.com/noah-isme/institute-grading-api/internal/grading"
	"github.com/noah-isme/institute-grading-api/internal/handler"
	internalmiddleware "github.com/noah-isme/institute-grading-api/internal/middleware"
	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/internal/repository"
	"github.com/noah-isme/institute-grading-api/internal/service"
	"github.com/noah-isme/institute-grading-api/pkg/cache"
	"github.com/noah-isme/institute-grading-api/pkg/config"
	"github.com/noah-isme/institute-grading-api/pkg/database"
	"github.com/noah-isme/institute-grading-api/pkg/export"
	"github.com/noah-isme/institute-grading-api/pkg/jobs"
	"github.com/noah-isme/institute-grading-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/institute-grading-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/institute-grading-api/pkg/middleware/requestid"
)

// @title Institute Grading API
// @version 1.0.0
// @description Grade entry, distribution profiles and computed results
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Grading.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, grading cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, "institute-grading:", cfg.Grading.CacheTTL, logr, redisClient != nil)

	distributionRepo := repository.NewDistributionProfileRepository(db)
	recordRepo := repository.NewGradeRecordRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	var legacy *grading.LegacyTable
	if cfg.Grading.SeedLegacyTable {
		legacy = grading.DefaultLegacyTable()
	}
	distributionSvc := service.NewDistributionService(distributionRepo, cacheSvc, metrics, validate, logr, service.DistributionServiceConfig{
		CacheTTL: cfg.Grading.CacheTTL,
		Legacy:   legacy,
	})
	gradeSvc := service.NewGradeEntryService(recordRepo, studentRepo, subjectRepo, distributionSvc, metrics, validate, logr, service.GradeEntryConfig{
		ImportMaxRows:     cfg.Grading.ImportMaxRows,
		RecalcConcurrency: cfg.Grading.RecalcConcurrency,
	})
	resultSvc := service.NewResultService(recordRepo, studentRepo, subjectRepo, distributionSvc,
		export.NewCSVExporter(), export.NewPDFExporter(cfg.Grading.PDFFontPath), metrics, validate, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	recalcQueue := jobs.NewQueue("grading-recalculation", service.RecalculationJobHandler(gradeSvc), jobs.QueueConfig{
		Workers:    cfg.Grading.RecalcWorkers,
		MaxRetries: cfg.Grading.RecalcRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	recalcQueue.Start(ctx)
	defer recalcQueue.Stop()
	distributionSvc.SetRecalculationScheduler(service.NewQueueRecalculationScheduler(recalcQueue))

	checks := []handler.ReadinessCheck{{Name: "postgres", Check: func(ctx context.Context) error { return db.PingContext(ctx) }}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.DefaultConfig(cfg.CORS.AllowedOrigins)))
	r.Use(internalmiddleware.Metrics(metrics))

	registerRoutes(r, cfg, routeDeps{
		tokens:        tokenSvc,
		distributions: handler.NewDistributionHandler(distributionSvc),
		grades:        handler.NewGradeHandler(gradeSvc),
		results:       handler.NewResultHandler(resultSvc),
		metrics:       handler.NewMetricsHandler(metrics, checks...),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeDeps struct {
	tokens        internalmiddleware.TokenValidator
	distributions *handler.DistributionHandler
	grades        *handler.GradeHandler
	results       *handler.ResultHandler
	metrics       *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(deps.tokens))

	admins := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	staff := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	staffOrSelf := internalmiddleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleTeacher), internalmiddleware.SelfAccess)

	api.GET("/metrics/summary", admins, deps.metrics.Summary)

	profiles := api.Group("/distribution-profiles")
	profiles.GET("", staff, deps.distributions.List)
	profiles.GET("/resolve", staff, deps.distributions.Resolve)
	profiles.GET("/:id", staff, deps.distributions.Get)
	profiles.POST("", admins, deps.distributions.Create)
	profiles.PUT("/:id", admins, deps.distributions.Update)
	profiles.DELETE("/:id", admins, deps.distributions.Delete)

	api.GET("/students/:id/eligibility", staffOrSelf, deps.grades.Eligibility)

	grades := api.Group("/grades")
	grades.GET("", staff, deps.grades.List)
	grades.PUT("", staff, deps.grades.Enter)
	grades.POST("/import", staff, deps.grades.Import)
	grades.DELETE("", admins, deps.grades.Reset)

	results := api.Group("/results")
	results.GET("/students/:id", staffOrSelf, deps.results.Transcript)
	results.GET("/students/:id/subjects/:subjectId", staffOrSelf, deps.results.SubjectResult)
	results.GET("/students/:id/export", staffOrSelf, deps.results.Export)
	results.GET("/top", staff, deps.results.Top)
	results.GET("/review", staff, deps.results.Review)
}
