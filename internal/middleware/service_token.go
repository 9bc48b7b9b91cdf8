package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

// InternalTokenHeader carries the shared service-to-service secret.
const InternalTokenHeader = "X-Internal-Token"

// ServiceToken guards internal endpoints with a shared secret. An empty secret rejects everything.
func ServiceToken(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(InternalTokenHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid service token"))
			c.Abort()
			return
		}
		c.Next()
	}
}
