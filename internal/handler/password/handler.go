package password

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yupeng0512/user-management/internal/handler"
	"github.com/yupeng0512/user-management/internal/middleware"
	"github.com/yupeng0512/user-management/internal/model"
	"github.com/yupeng0512/user-management/internal/service/password"
	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

type Handler struct {
	svc *password.Service
}

func NewHandler(svc *password.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the password endpoints under /auth/password. Only
// change requires a session; validate uses one for hints when present.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	pw := r.Group("/auth/password")
	{
		pw.PUT("/change", authMw.Authenticate(), h.ChangePassword)
		pw.POST("/reset", h.InitiateReset)
		pw.POST("/reset/confirm", h.ConfirmReset)
		pw.POST("/validate", authMw.OptionalAuth(), h.ValidatePassword)
		pw.GET("/policy", h.Policy)
	}
}

func (h *Handler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.NewUnauthorized("authentication required", nil))
		return
	}

	var req model.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.ChangePassword(c.Request.Context(), user.ID, &req, c.ClientIP())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("password changed successfully", resp))
}

func (h *Handler) InitiateReset(c *gin.Context) {
	var req model.ResetPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.InitiateReset(c.Request.Context(), req.Email, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("if the account exists a reset link has been sent", resp))
}

func (h *Handler) ConfirmReset(c *gin.Context) {
	var req model.ConfirmResetPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.ConfirmReset(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("password reset successfully", resp))
}

// ValidatePassword scores a candidate. Hints in the body win; otherwise the
// signed-in user's identity is used.
func (h *Handler) ValidatePassword(c *gin.Context) {
	var req model.ValidatePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	username, email := req.Username, req.Email
	if user, ok := middleware.CurrentUser(c); ok {
		if username == "" {
			username = user.Username
		}
		if email == "" {
			email = user.Email
		}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.ValidatePassword(req.Password, username, email)))
}

func (h *Handler) Policy(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.Policy()))
}
