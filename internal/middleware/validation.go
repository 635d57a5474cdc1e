package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/yupeng0512/user-management/internal/handler"
	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

// ValidationConfig represents validation middleware configuration
type ValidationConfig struct {
	CustomValidators map[string]validator.Func
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"notblank": notBlank,
		},
	}
}

// Validation configures gin's validator to report JSON field names and
// answers for bind errors a handler attached but did not render.
func Validation(config ValidationConfig) gin.HandlerFunc {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				log.Fatal().Err(err).Str("tag", tag).Msg("Failed to register validator")
			}
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	}

	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		for _, e := range c.Errors.ByType(gin.ErrorTypeBind) {
			if fields := handler.FieldErrors(e.Err); fields != nil {
				handler.RespondError(c, apperrors.NewValidation("request validation failed", e.Err).WithDetails(fields))
				return
			}
		}
	}
}

// notBlank rejects strings made only of whitespace
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
