package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextTokenKey stores the raw bearer token for forwarding upstream.
	ContextTokenKey = "bearerToken"
	// ContextInstitutionKey holds the tenant of an anonymous request, such as a signed content link.
	ContextInstitutionKey = "institutionID"
)

// TokenValidator validates access tokens. Every service validates locally with the shared secret.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present but does not block.
func OptionalJWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		token, err := bearerToken(c)
		if err != nil {
			c.Next()
			return
		}
		if claims, err := validator.ValidateToken(token); err == nil {
			c.Set(ContextUserKey, claims)
			c.Set(ContextTokenKey, token)
		}
		c.Next()
	}
}

// CurrentActor returns the authenticated principal.
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Actor{}, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

// BearerToken returns the raw token accepted by JWT.
func BearerToken(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
