package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

// AuditWriter persists audit rows.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetInstitution attributes an anonymous request to a tenant.
func SetInstitution(c *gin.Context, institutionID string) {
	c.Set(ContextInstitutionKey, institutionID)
}

// Audit records an audit row after a successful request. The :id route
// parameter becomes the resource id. Requests without an actor are attributed
// to the tenant stored under ContextInstitutionKey, if any.
func Audit(writer AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if writer == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if actor, ok := CurrentActor(c); ok {
			entry.UserID = &actor.UserID
			entry.InstitutionID = &actor.InstitutionID
		} else if institutionID := c.GetString(ContextInstitutionKey); institutionID != "" {
			entry.InstitutionID = &institutionID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		if err := writer.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
