package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yupeng0512/user-management/internal/repository"
)

const readinessTimeout = 2 * time.Second

// Handler serves the health endpoints
type Handler struct {
	store    repository.HealthChecker
	gatherer prometheus.Gatherer
}

func NewHandler(store repository.HealthChecker, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		store:    store,
		gatherer: gatherer,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
		health.GET("/metrics", h.MetricsHandler)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"status": "alive",
		"time":   time.Now().UTC(),
	}))
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, &Response{
			Status:  "error",
			Code:    "NOT_READY",
			Message: "store is unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"status": "ready",
		"time":   time.Now().UTC(),
	}))
}

func (h *Handler) MetricsHandler(c *gin.Context) {
	promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}
