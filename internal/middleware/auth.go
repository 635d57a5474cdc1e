package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yupeng0512/user-management/internal/handler"
	"github.com/yupeng0512/user-management/internal/model"
	apperrors "github.com/yupeng0512/user-management/pkg/errors"
)

const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate verifies the access token and puts the user in the context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		user, err := m.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is presented and otherwise
// lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}

		token, err := bearerToken(c)
		if err == nil {
			if user, err := m.auth.Authenticate(c.Request.Context(), token); err == nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user set by Authenticate or OptionalAuth
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

func setUser(c *gin.Context, user *model.User) {
	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.ID.String())
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header", nil)
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization format", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}
