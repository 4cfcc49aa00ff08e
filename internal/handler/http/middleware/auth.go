package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/service"
)

// ClaimsKey is the gin context key the authenticated claims live under.
const ClaimsKey = "auth_claims"

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(ctx context.Context, tokenString string, expectedTenant *uuid.UUID) (*models.Claims, error)
}

// Auth requires a valid access token on the request. Claims are stored on
// the gin context for the handlers.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
				"code":  "unauthorized",
			})
			return
		}

		claims, err := validator.Validate(c.Request.Context(), token, nil)
		if err != nil || claims.TokenType != models.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid access token",
				"code":  "unauthorized",
			})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims Auth stored on the context.
func ClaimsFrom(c *gin.Context) (*models.Claims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.Claims)
	return claims, ok
}

// RequestMetadata copies caller details into the request context so the
// service layer can log and rate limit by source address.
func RequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		md := map[string]string{
			"ip-address": c.ClientIP(),
			"user-agent": c.Request.UserAgent(),
		}
		ctx := context.WithValue(c.Request.Context(), service.MetadataKey, md)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
