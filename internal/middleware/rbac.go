package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/authz"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

// Authorize checks the capability table once per route.
func Authorize(op authz.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := CurrentActor(c)
		if err := authz.Require(actor, op); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
