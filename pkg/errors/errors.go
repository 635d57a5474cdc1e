package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable machine-readable code returned to clients
type ErrorCode string

// AppError represents an application error
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Status  int         `json:"-"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status the error maps to
func (e *AppError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// WithDetails returns a copy of the error carrying the given payload
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Common error codes
const (
	ErrValidation         ErrorCode = "VALIDATION_ERROR"
	ErrPasswordMismatch   ErrorCode = "PASSWORD_MISMATCH"
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrWeakPassword       ErrorCode = "WEAK_PASSWORD"
	ErrPasswordReused     ErrorCode = "PASSWORD_REUSED"
	ErrInvalidToken       ErrorCode = "INVALID_OR_EXPIRED_TOKEN"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error constructors
func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Status:  http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewPasswordMismatch() *AppError {
	return &AppError{
		Code:    ErrPasswordMismatch,
		Status:  http.StatusBadRequest,
		Message: "new password and confirmation do not match",
	}
}

func NewInvalidCredentials(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidCredentials,
		Status:  http.StatusUnauthorized,
		Message: message,
	}
}

// NewRateLimited takes the status explicitly: the change flow answers 403
// while reset initiation answers 429.
func NewRateLimited(status int, message string, details interface{}) *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Status:  status,
		Message: message,
		Details: details,
	}
}

func NewWeakPassword(details interface{}) *AppError {
	return &AppError{
		Code:    ErrWeakPassword,
		Status:  http.StatusUnprocessableEntity,
		Message: "password does not meet strength requirements",
		Details: details,
	}
}

func NewPasswordReused(message string) *AppError {
	return &AppError{
		Code:    ErrPasswordReused,
		Status:  http.StatusUnprocessableEntity,
		Message: message,
	}
}

func NewInvalidToken() *AppError {
	return &AppError{
		Code:    ErrInvalidToken,
		Status:  http.StatusBadRequest,
		Message: "reset token is invalid or has expired",
	}
}

func NewUnauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Status:  http.StatusUnauthorized,
		Message: message,
		Err:     err,
	}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewConflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Status:  http.StatusConflict,
		Message: message,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Err:     err,
	}
}

// As extracts an *AppError from err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
