package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewMessageResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func NewAppErrorResponse(err *apperrors.AppError) *Response {
	return &Response{
		Status:  "error",
		Code:    string(err.Code),
		Message: err.Message,
		Data:    err.Details,
	}
}

// RespondError writes err as the standard error envelope. Anything that is
// not an *AppError becomes a 500 with the cause kept out of the body.
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternal(err)
	}

	if appErr.StatusCode() >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), NewAppErrorResponse(appErr))
}

// FieldError describes one failed binding rule
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var fieldMessages = map[string]string{
	"required": "Field is required",
	"email":    "Invalid email format",
	"min":      "Value is too short",
	"max":      "Value is too long",
	"alphanum": "Only letters and digits are allowed",
}

// FieldErrors flattens validator errors into client-facing messages
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg := fieldMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

// BindJSON binds the request body and writes a VALIDATION_ERROR response when
// it is malformed. It reports whether the handler should continue.
func BindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	if fields := FieldErrors(err); fields != nil {
		RespondError(c, apperrors.NewValidation("request validation failed", err).WithDetails(fields))
		return false
	}
	RespondError(c, apperrors.NewValidation("malformed request body", err))
	return false
}
