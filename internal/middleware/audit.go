package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corrtrace/corrtrace/internal/correlation"
	"github.com/corrtrace/corrtrace/internal/logging"
)

// AuditMiddleware creates a Gin middleware that records one audit event per
// request, carrying the correlation identifiers the request resolved to.
// Register it before the correlation middleware so it observes the final
// outcome, including policy rejections.
func AuditMiddleware(auditStore logging.AuditStore, accessor correlation.Accessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		// Process request
		c.Next()

		latency := time.Since(start)

		eventType := logging.APIAccess
		status := logging.StatusSuccess
		if c.GetBool(correlation.RejectedKey) {
			eventType = logging.CorrelationReject
			status = logging.StatusFailure
		} else if c.Writer.Status() >= 400 {
			status = logging.StatusFailure
		}

		event := logging.NewAuditEvent(eventType, c.Request.Method+" "+path, status)
		event.IPAddress = c.ClientIP()
		event.Resource = path
		if eventType == logging.CorrelationReject {
			event.Severity = logging.SeverityWarning
		}

		if info := accessor.Get(c); info != nil {
			event.WithCorrelation(info.OperationID(), info.TransactionID(), info.OperationParentID())
		}

		event.Details = map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		// Save asynchronously to not block the request
		auditStore.SaveEventAsync(event)
	}
}
