package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scheduler-api/internal/handler/prometheus"
	"github.com/jwalitptl/scheduler-api/internal/middleware"
)

// Handler is anything that mounts routes under /api/v1.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
}

type Router struct {
	engine   *gin.Engine
	handlers []Handler
	prom     *prometheus.Handler
}

func NewRouter(zl *zerolog.Logger, cfg Config, prom *prometheus.Handler, handlers ...Handler) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(zl),
		middleware.RequestID(),
		middleware.Logger(zl),
		middleware.ErrorHandler(zl),
		prom.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.RequestTimeout}),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  cfg.RateLimit,
		Burst: cfg.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:   engine,
		handlers: handlers,
		prom:     prom,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.prom.Handler())

	api := r.engine.Group("/api/v1")
	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
