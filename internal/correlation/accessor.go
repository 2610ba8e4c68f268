package correlation

import (
	"github.com/gin-gonic/gin"

	"github.com/corrtrace/corrtrace/internal/logging"
)

// infoKey is the gin context key holding the request's correlation Info.
// Gin context storage is request-scoped, so concurrent requests never
// observe each other's correlation state.
const infoKey = "corrtrace/correlation-info"

// Accessor stores and retrieves the correlation Info of the request being
// handled. Downstream handlers may replace the stored Info; the middleware
// re-reads it through the accessor when composing the response.
type Accessor interface {
	// Get returns the current correlation Info, or nil when none is stored
	Get(c *gin.Context) *Info
	// Set replaces the correlation Info for the remainder of the request
	Set(c *gin.Context, info *Info)
}

// ContextAccessor is the default Accessor. It keeps the Info in the gin
// request context and mirrors the identifiers into the request's
// context.Context so the structured logger picks them up.
type ContextAccessor struct{}

// NewContextAccessor creates the default request-scoped accessor
func NewContextAccessor() *ContextAccessor {
	return &ContextAccessor{}
}

// Get returns the stored correlation Info, or nil
func (a *ContextAccessor) Get(c *gin.Context) *Info {
	value, exists := c.Get(infoKey)
	if !exists {
		return nil
	}
	info, ok := value.(*Info)
	if !ok {
		return nil
	}
	return info
}

// Set stores the correlation Info and stamps the request context
func (a *ContextAccessor) Set(c *gin.Context, info *Info) {
	if info == nil {
		return
	}
	c.Set(infoKey, info)

	ctx := logging.WithOperationID(c.Request.Context(), info.OperationID())
	if id := info.TransactionID(); id != "" {
		ctx = logging.WithTransactionID(ctx, id)
	}
	if id := info.OperationParentID(); id != "" {
		ctx = logging.WithOperationParentID(ctx, id)
	}
	c.Request = c.Request.WithContext(ctx)
}

// NoopAccessor disables correlation visibility: Get always returns nil and
// Set discards its argument. Substituting it turns off correlation headers
// and log stamping without touching the middleware.
type NoopAccessor struct{}

// NewNoopAccessor creates an accessor that stores nothing
func NewNoopAccessor() *NoopAccessor {
	return &NoopAccessor{}
}

// Get always returns nil
func (a *NoopAccessor) Get(*gin.Context) *Info {
	return nil
}

// Set discards the Info
func (a *NoopAccessor) Set(*gin.Context, *Info) {}
