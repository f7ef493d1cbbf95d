package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/matchsync/internal/api/handler"
	"github.com/timmy/matchsync/internal/api/middleware"
	"github.com/timmy/matchsync/internal/config"
	"github.com/timmy/matchsync/internal/logger"
)

// Handlers groups the route handlers.
type Handlers struct {
	Health  *handler.HealthHandler
	Runs    *handler.RunHandler
	Catalog *handler.CatalogHandler
	Archive *handler.ArchiveHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, gatherer prometheus.Gatherer, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	r.GET("/health", h.Health.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		// Runs
		v1.POST("/runs", h.Runs.StartRun)
		v1.GET("/runs", h.Runs.ListRuns)
		v1.GET("/runs/status", h.Runs.GetRunStatus)
		v1.GET("/runs/:id", h.Runs.GetRun)
		if h.Archive != nil {
			v1.GET("/runs/:id/payloads/:chunk", h.Archive.GetChunk)
		}

		// Catalog
		v1.GET("/targets", h.Catalog.ListTargets)
		v1.GET("/coverage", h.Catalog.Coverage)
	}

	return r
}
