package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/use-agent/pagepipe/api/handler"
	"github.com/use-agent/pagepipe/api/middleware"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/metrics"
	"github.com/use-agent/pagepipe/models"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so health checks and Prometheus scrapes always work.
// gatherer may be nil to leave /metrics off. ctx bounds the rate limiter's
// background eviction.
func NewRouter(ctx context.Context, runs *handler.Runs, cfg *config.Config, base models.PageLoadPolicy, gatherer prometheus.Gatherer, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(runs, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(runs, base))
	protected.POST("/extract", handler.Extract(runs, base, cfg.LLM))

	return r
}
