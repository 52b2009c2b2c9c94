// Package router assembles the HTTP surface of the service.
package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-swap-api/api/swagger"
	"github.com/noah-isme/course-swap-api/internal/handler"
	"github.com/noah-isme/course-swap-api/internal/middleware"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/service"
	"github.com/noah-isme/course-swap-api/pkg/logger"
	"github.com/noah-isme/course-swap-api/pkg/middleware/requestid"
)

// Dependencies carries the handlers and cross-cutting services mounted by New.
type Dependencies struct {
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	TokenValidator middleware.TokenValidator
	Audit          middleware.AuditRecorder

	AuthHandler      *handler.AuthHandler
	CourseHandler    *handler.CourseHandler
	SwapHandler      *handler.SwapHandler
	AdminSwapHandler *handler.AdminSwapHandler
	MetricsHandler   *handler.MetricsHandler
}

// Options tune the router without touching handler wiring.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
}

// New builds the gin engine.
func New(deps Dependencies, opts Options) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/metrics"))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	r.Use(middleware.Metrics(deps.Metrics))

	if deps.MetricsHandler != nil {
		r.GET("/health", deps.MetricsHandler.Health)
		r.GET("/ready", deps.MetricsHandler.Ready)
		r.GET("/metrics", deps.MetricsHandler.Prometheus)
	}
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	if deps.AuthHandler != nil {
		api.POST("/auth/login", deps.AuthHandler.Login)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.TokenValidator))
	if deps.AuthHandler != nil {
		secured.GET("/auth/me", deps.AuthHandler.Me)
	}

	if h := deps.CourseHandler; h != nil {
		courses := secured.Group("/courses")
		courses.GET("", h.List)
		courses.GET("/mine", h.Mine)
		courses.GET("/:id", h.Get)
	}

	if h := deps.SwapHandler; h != nil {
		swaps := secured.Group("/swaps")
		swaps.POST("", middleware.RequireRoles(models.RoleStudent), h.Submit)
		swaps.GET("", h.List)
		swaps.GET("/:id", h.Get)
		swaps.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), h.Cancel)
	}

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	if h := deps.CourseHandler; h != nil {
		admin.POST("/courses", h.Create)
	}
	if h := deps.AdminSwapHandler; h != nil {
		swaps := admin.Group("/swaps")
		swaps.GET("", h.List)
		swaps.GET("/export", middleware.Audit(deps.Audit, models.AuditActionSwapExport, models.AuditResourceSwapRequest), h.Export)
		swaps.POST("/batch", h.BatchResolve)
		swaps.GET("/:id", h.Detail)
		swaps.PATCH("/:id", h.Resolve)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           10 * time.Minute,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
