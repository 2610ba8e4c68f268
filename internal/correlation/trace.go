package correlation

import (
	"github.com/gin-gonic/gin"

	"github.com/corrtrace/corrtrace/pkg/hierarchical"
)

// traceIdentifierKey is the gin context key holding the seeded trace
// identifier.
const traceIdentifierKey = "corrtrace/trace-identifier"

// TraceIdentifier seeds the request trace identifier from the root of the
// hierarchical upstream request identifier. When registered before
// Middleware, operation resolution reuses the seeded value instead of
// generating a fresh one. Leaving it out of the chain disables the
// synchronization.
func TraceIdentifier(opts Options) gin.HandlerFunc {
	opts = opts.withDefaults()

	return func(c *gin.Context) {
		if raw := c.Request.Header.Get(opts.UpstreamService.HeaderName); raw != "" {
			if root := hierarchical.RootID(raw); root != "" {
				c.Set(traceIdentifierKey, root)
			}
		}
		c.Next()
	}
}

// TraceIdentifierFrom returns the seeded trace identifier, or empty when
// none was seeded for this request.
func TraceIdentifierFrom(c *gin.Context) string {
	value, exists := c.Get(traceIdentifierKey)
	if !exists {
		return ""
	}
	id, ok := value.(string)
	if !ok {
		return ""
	}
	return id
}
