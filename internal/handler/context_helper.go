package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/middleware"
	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

// actorOrAbort returns the authenticated actor or answers 401.
func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
