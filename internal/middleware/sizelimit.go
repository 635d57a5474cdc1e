package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yupeng0512/user-management/internal/handler"
	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64
	MaxHeaderSize int
}

// DefaultSizeLimitConfig fits every JSON body this API accepts
func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   64 << 10,
		MaxHeaderSize: 16 << 10,
	}
}

// SizeLimit rejects oversized requests before they reach the bcrypt-heavy handlers
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			respondTooLarge(c, fmt.Sprintf("body size exceeds %d bytes", config.MaxBodySize))
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, value := range values {
				headerSize += len(value)
			}
		}
		if headerSize > config.MaxHeaderSize {
			respondTooLarge(c, fmt.Sprintf("header size exceeds %d bytes", config.MaxHeaderSize))
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		}
		c.Next()
	}
}

func respondTooLarge(c *gin.Context, message string) {
	handler.RespondError(c, &apperrors.AppError{
		Code:    apperrors.ErrValidation,
		Status:  http.StatusRequestEntityTooLarge,
		Message: message,
	})
}
