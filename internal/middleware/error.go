package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/handler"
)

// ErrorHandler logs errors attached with c.Error and answers with the last
// one if the handler did not write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			if e.IsType(gin.ErrorTypeBind) {
				continue
			}
			log.Error().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Interface("meta", e.Meta).
				Msg("Request error")
		}

		if !c.Writer.Written() {
			handler.RespondError(c, c.Errors.Last().Err)
		}
	}
}
