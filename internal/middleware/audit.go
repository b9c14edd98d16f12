package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

// AuditOutcomeKey lets handlers attach a business outcome to the audit record.
const AuditOutcomeKey = "audit_outcome"

// AuditRecorder persists audit log entries.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records successful mutating requests to the audit trail and the structured log.
func Audit(recorder AuditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims := Claims(c); claims != nil {
			userID = &claims.UserID
		}
		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}
		outcome := c.GetString(AuditOutcomeKey)

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"outcome": outcome,
			"latency": time.Since(start).Milliseconds(),
		})

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("outcome", outcome),
			zap.String("ip", c.ClientIP()),
		}
		if userID != nil {
			fields = append(fields, zap.String("user_id", *userID))
		}
		logger.Info("audit", fields...)

		if recorder == nil {
			return
		}
		if err := recorder.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}); err != nil {
			logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
