package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	applog "github.com/noah-isme/behavior-tracker-api/pkg/logger"
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Audit records an audit entry after each successful request. Failures to
// write the entry are logged and never change the response.
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
		if claims := Claims(c); claims != nil {
			entry.UserID = &claims.UserID
			if claims.SchoolID != "" {
				entry.SchoolID = &claims.SchoolID
			}
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		details := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		if pattern := c.Query("pattern"); pattern != "" {
			details["pattern"] = pattern
		}
		entry.Details, _ = json.Marshal(details)

		if err := writer.Create(c.Request.Context(), entry); err != nil {
			applog.ForRequest(logger, c).Warn("audit write failed", zap.String("action", action), zap.Error(err))
		}
	}
}
