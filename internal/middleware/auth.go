package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ammachi-ai/backend/internal/identity"
	"github.com/ammachi-ai/backend/internal/models"
)

// ContextUserKey is where RequireAuth stores the resolved user.
const ContextUserKey = "user"

// TokenResolver resolves a bearer token into an application user.
type TokenResolver interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth validates the Authorization header and loads the user into the
// request context. A missing or malformed header is 401; a token that fails
// verification is 403 and is never downgraded to anonymous.
func RequireAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":     "missing or malformed authorization header",
				"errorCode": "MISSING_TOKEN",
			})
			c.Abort()
			return
		}

		user, err := resolver.VerifyToken(c.Request.Context(), token)
		if err != nil {
			status, code, msg := authErrorResponse(err)
			c.JSON(status, gin.H{"error": msg, "errorCode": code})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// OptionalAuth loads the user when a valid bearer token is present and
// otherwise continues anonymously. Used only for activity counters on
// public endpoints, never for an authorization decision.
func OptionalAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := resolver.VerifyToken(c.Request.Context(), token); err == nil {
				c.Set(ContextUserKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser retrieves the user stored by RequireAuth or OptionalAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, identity.ErrProviderDisabled):
		return http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service unavailable"
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusForbidden, "INVALID_TOKEN", "Invalid or expired token"
	default:
		return http.StatusInternalServerError, "INTERNAL", "Failed to verify token"
	}
}
