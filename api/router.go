package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/slidepdf/api/handler"
	"github.com/use-agent/slidepdf/api/middleware"
	"github.com/use-agent/slidepdf/config"
	"github.com/use-agent/slidepdf/metrics"
	"github.com/use-agent/slidepdf/pipeline"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	Pipeline *pipeline.Pipeline

	// Metrics and Gatherer are optional; nil disables the corresponding
	// middleware and the /metrics endpoint.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Recovery → RequestID → Logger → CORS → Metrics
//
// Unmatched GET requests fall through to the static front-end bundle when
// one is configured.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.GET("/health", handler.Health(deps.StartTime))

	api := r.Group("/api")
	api.POST("/process", handler.Process(deps.Pipeline))
	api.POST("/process-stream", handler.ProcessStream(deps.Pipeline))

	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if static := handler.Static(cfg.Static.Dir); static != nil {
		r.NoRoute(static)
	} else {
		r.NoRoute(handler.NotFound)
	}

	return r
}
