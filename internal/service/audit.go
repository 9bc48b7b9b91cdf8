package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit row; failures are logged only.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, entry *models.AuditLog) {
	if audit == nil || entry == nil {
		return
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}

func auditJSON(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
