package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/handler"
	"github.com/yupeng0512/user-management/internal/middleware"
	"github.com/yupeng0512/user-management/pkg/metrics"
)

// Handler is an API module mounted under /api/v1
type Handler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type RouterConfig struct {
	App       config.AppConfig
	Server    config.ServerConfig
	RateLimit config.RateLimitConfig
	Metrics   *metrics.Metrics
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   *handler.Handler
	handlers []Handler
}

func NewRouter(cfg RouterConfig, auth *middleware.AuthMiddleware, health *handler.Handler, handlers ...Handler) *Router {
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(middleware.DefaultLoggerConfig()),
		middleware.Metrics(cfg.Metrics),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.App.FrontendURL)),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
		middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout}),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:     cfg.RateLimit.RequestsPerSecond,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		health:   health,
		handlers: handlers,
	}
}

func (r *Router) Setup() *gin.Engine {
	api := r.engine.Group("/api/v1")

	r.health.RegisterRoutes(api)
	for _, h := range r.handlers {
		h.RegisterRoutes(api, r.auth)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("route not found"))
	})
	return r.engine
}
