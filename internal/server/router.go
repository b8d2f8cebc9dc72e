package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/abduss/tribute/internal/config"
	"github.com/abduss/tribute/internal/logger"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/metrics"
)

// Pinger is satisfied by *pgxpool.Pool and *sqlstore.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is satisfied by *disk.Manager.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	DB           Pinger
	Disks        HealthChecker
	MediaService *media.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.MediaService != nil {
		media.RegisterRoutes(api, deps.MediaService)
	}

	return router
}
