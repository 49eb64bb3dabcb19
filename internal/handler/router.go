package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/middleware"
	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/internal/service"
	"github.com/noah-isme/seatwatch/pkg/logger"
	corsmiddleware "github.com/noah-isme/seatwatch/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/seatwatch/pkg/middleware/requestid"
)

// RouterConfig carries everything the ops API mounts.
type RouterConfig struct {
	APIPrefix      string
	EnableDocs     bool
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenValidator
	Probes         *MetricsHandler
	Sections       *SectionHandler
	Status         *StatusHandler
}

// NewRouter builds the gin engine for the ops API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.GET("/health", cfg.Probes.Health)
	r.GET("/ready", cfg.Probes.Ready)
	r.GET("/metrics", cfg.Probes.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/sections", cfg.Sections.List)
	api.GET("/sections/export", cfg.Sections.Export)
	api.GET("/sections/:courseCode/:sectionNumber", cfg.Sections.Get)
	api.GET("/status", cfg.Status.Status)

	admin := api.Group("/admin", middleware.JWT(cfg.Auth), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/resync", cfg.Status.Resync)

	return r
}
