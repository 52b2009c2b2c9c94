package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/handler"
	"github.com/noah-isme/course-swap-api/internal/repository"
	"github.com/noah-isme/course-swap-api/internal/router"
	"github.com/noah-isme/course-swap-api/internal/service"
	"github.com/noah-isme/course-swap-api/pkg/cache"
	"github.com/noah-isme/course-swap-api/pkg/config"
)

// App is the assembled HTTP application.
type App struct {
	Engine  *gin.Engine
	Metrics *service.MetricsService
	Audit   *service.AuditService

	stores *Stores
	redis  *redis.Client
	logger *zap.Logger
}

// NewApp builds services and the router over stores. A Redis client is
// opened only when the course cache is enabled; failure to reach it disables
// caching rather than aborting startup.
func NewApp(ctx context.Context, cfg *config.Config, stores *Stores, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	metrics := service.NewMetricsService()

	app := &App{Metrics: metrics, stores: stores, logger: logger}

	app.Audit = service.NewAuditService(stores.Users, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		Buffer:     cfg.Audit.Buffer,
		MaxRetries: cfg.Audit.Retries,
	}, logger.Named("audit"))
	app.Audit.Start(ctx)

	var courseOpts []service.CourseServiceOption
	if cfg.Courses.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("course cache disabled", zap.Error(err))
		} else {
			app.redis = client
			cacheSvc := service.NewCacheService(repository.NewCacheRepository(client, logger), metrics, cfg.Courses.CacheTTL, logger, true)
			courseOpts = append(courseOpts, service.WithCourseCache(cacheSvc, cfg.Courses.CacheTTL))
		}
	}

	authSvc := service.NewAuthService(stores.Users, app.Audit, validate, logger.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "course-swap-api",
	})
	courseSvc := service.NewCourseService(stores.Courses, stores.Users, validate, logger.Named("courses"), courseOpts...)
	swapSvc := service.NewSwapService(stores.Requests, stores.Courses, stores.Users, stores.UnitOfWork, service.SwapConfig{
		ReasonMinLength: cfg.Swaps.ReasonMinLength,
		DefaultPageSize: cfg.Swaps.DefaultPageSize,
		MaxPageSize:     cfg.Swaps.MaxPageSize,
		BatchMax:        cfg.Swaps.BatchMax,
	}, validate, logger.Named("swaps"),
		service.WithSwapAudit(app.Audit),
		service.WithSwapMetrics(metrics),
		service.WithCatalogInvalidator(courseSvc),
	)
	exportSvc := service.NewExportService(swapSvc, stores.Courses, cfg.Swaps.MaxPageSize, logger.Named("export"))

	checks := map[string]handler.ReadinessCheck{"storage": stores.Ping}
	if app.redis != nil {
		checks["cache"] = func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
	}

	app.Engine = router.New(router.Dependencies{
		Logger:           logger,
		Metrics:          metrics,
		TokenValidator:   authSvc,
		Audit:            app.Audit,
		AuthHandler:      handler.NewAuthHandler(authSvc),
		CourseHandler:    handler.NewCourseHandler(courseSvc),
		SwapHandler:      handler.NewSwapHandler(swapSvc),
		AdminSwapHandler: handler.NewAdminSwapHandler(swapSvc, exportSvc),
		MetricsHandler:   handler.NewMetricsHandler(metrics, checks),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
	})
	return app
}

// Close drains the audit queue and releases the cache client.
func (a *App) Close() {
	a.Audit.Stop()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}
