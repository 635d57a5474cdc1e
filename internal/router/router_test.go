package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yupeng0512/user-management/internal/config"
	"github.com/yupeng0512/user-management/internal/handler"
	"github.com/yupeng0512/user-management/internal/middleware"
	"github.com/yupeng0512/user-management/internal/repository/memory"
	"github.com/yupeng0512/user-management/pkg/metrics"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(r *gin.RouterGroup, _ *middleware.AuthMiddleware) {
	r.GET("/echo", func(c *gin.Context) {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(c.GetString(middleware.ContextRequestID)))
	})
}

func newTestRouter(t *testing.T, rateLimit config.RateLimitConfig) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)

	r := NewRouter(RouterConfig{
		App:       config.AppConfig{Env: "test", FrontendURL: "http://localhost:3000"},
		Server:    config.ServerConfig{RequestTimeout: time.Second},
		RateLimit: rateLimit,
		Metrics:   m,
	}, middleware.NewAuthMiddleware(nil), handler.NewHandler(memory.NewStore(), reg), echoHandler{})
	return r.Setup(), reg
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	engine.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	engine, _ := newTestRouter(t, config.RateLimitConfig{})

	w := get(engine, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(engine, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(engine, "/api/v1/echo")
	require.Equal(t, http.StatusOK, w.Code)
	var resp handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, w.Header().Get(middleware.HeaderXRequestID), resp.Data)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = get(engine, "/api/v1/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	engine, _ := newTestRouter(t, config.RateLimitConfig{})

	get(engine, "/api/v1/echo")
	w := get(engine, "/api/v1/health/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "test_http_requests_total"), body)
	assert.Contains(t, body, `path="/api/v1/echo"`)
}

func TestRateLimitEnabled(t *testing.T) {
	engine, _ := newTestRouter(t, config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             1,
		IdleTTL:           time.Minute,
	})

	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/echo").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(engine, "/api/v1/echo").Code)
}
