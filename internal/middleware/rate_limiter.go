package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/yupeng0512/user-management/internal/handler"
	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

type RateLimiterConfig struct {
	RPS   float64
	Burst int
	// IdleTTL evicts the limiter of a client that has gone quiet
	IdleTTL time.Duration
}

// RateLimiter is a token bucket per client IP. It guards the endpoints from
// floods; the per-account password limits live in the password service.
type RateLimiter struct {
	config   RateLimiterConfig
	mu       sync.Mutex
	limiters *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: cache.New(config.IdleTTL, 2*config.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(key); ok {
		l := v.(*rate.Limiter)
		rl.limiters.Set(key, l, cache.DefaultExpiration)
		return l
	}

	l := rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)
	rl.limiters.Set(key, l, cache.DefaultExpiration)
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	retryAfter := "1"
	if rl.config.RPS > 0 && rl.config.RPS < 1 {
		retryAfter = strconv.Itoa(int(1/rl.config.RPS + 0.5))
	}

	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", retryAfter)
			handler.RespondError(c, apperrors.NewRateLimited(http.StatusTooManyRequests, "rate limit exceeded", nil))
			return
		}
		c.Next()
	}
}
