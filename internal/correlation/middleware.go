package correlation

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corrtrace/corrtrace/internal/logging"
	"github.com/corrtrace/corrtrace/internal/metrics"
	"github.com/corrtrace/corrtrace/pkg/hierarchical"
)

// RejectedKey is set on the gin context when a request was rejected for
// carrying a disallowed transaction header. Audit middleware reads it.
const RejectedKey = "corrtrace/correlation-rejected"

// Middleware resolves the correlation context for every request: it assigns
// the operation ID, accepts or synthesizes the transaction ID, extracts the
// operation-parent ID from the upstream request identifier, stores the
// result through the accessor before the handler runs, and emits the
// correlation response headers afterwards.
//
// The only failing branch is a request that carries the transaction header
// while Transaction.AllowInRequest is false: it is answered with 400 and no
// correlation headers, and the handler never runs.
func Middleware(opts Options, accessor Accessor, logger *logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	opts = opts.withDefaults()
	if accessor == nil {
		accessor = NewContextAccessor()
	}

	return func(c *gin.Context) {
		// Operation ID is always server-assigned, reusing a seeded trace
		// identifier when present.
		operationID := TraceIdentifierFrom(c)
		if operationID == "" {
			operationID = opts.Operation.GenerateID()
			m.RecordGeneratedID(metrics.KindOperation)
		}

		transactionID, rejected := resolveTransaction(c, opts.Transaction, m)
		if rejected {
			m.RecordCorrelationRequest(metrics.OutcomeRejected)
			logger.WarnWithContext(c.Request.Context(), "disallowed transaction header in request",
				"header", opts.Transaction.HeaderName,
				"path", c.Request.URL.Path)
			c.Set(RejectedKey, true)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("header %q is not allowed in requests", opts.Transaction.HeaderName),
			})
			return
		}

		parentID, rawParent, parentHeader := resolveParent(c, opts)

		accessor.Set(c, NewInfo(operationID, transactionID, parentID))
		m.RecordCorrelationRequest(metrics.OutcomeAccepted)

		// Response headers must be composed after the handler had its
		// chance to replace the Info, yet before the first body byte is
		// flushed. The wrapper runs composition once, at whichever write
		// comes first.
		writer := &headerWriter{ResponseWriter: c.Writer}
		writer.compose = func() {
			composeResponseHeaders(c, opts, accessor, rawParent, parentHeader)
		}
		c.Writer = writer

		c.Next()

		// Handlers that wrote nothing still get their headers composed
		// before gin finalizes the response.
		writer.emitHeaders()
	}
}

// resolveTransaction applies the transaction policy. The second return is
// true when the request must be rejected.
func resolveTransaction(c *gin.Context, opts TransactionOptions, m *metrics.Metrics) (string, bool) {
	value := c.Request.Header.Get(opts.HeaderName)

	if value != "" && !opts.AllowInRequest {
		return "", true
	}
	if value != "" {
		return value, false
	}
	if opts.GenerateWhenNotSpecified {
		id := opts.GenerateID()
		m.RecordGeneratedID(metrics.KindTransaction)
		return id, false
	}
	return "", false
}

// resolveParent evaluates both extraction paths. It returns the parsed
// parent ID, the raw header value to echo, and the header name it came
// from. The operation-parent path wins when both paths yield a value.
func resolveParent(c *gin.Context, opts Options) (parentID, rawValue, headerName string) {
	if opts.UpstreamService.ExtractFromRequest {
		if value := c.Request.Header.Get(opts.UpstreamService.HeaderName); value != "" {
			parentID = hierarchical.ParentID(value)
			rawValue = value
			headerName = opts.UpstreamService.HeaderName
		}
	}
	if opts.OperationParent.ExtractFromRequest {
		if value := c.Request.Header.Get(opts.OperationParent.HeaderName); value != "" {
			parentID = hierarchical.ParentID(value)
			rawValue = value
			headerName = opts.OperationParent.HeaderName
		}
	}
	return parentID, rawValue, headerName
}

// composeResponseHeaders writes the correlation response headers from the
// current Info. A header is omitted entirely, never sent blank, when its
// policy is off or its value is empty.
func composeResponseHeaders(c *gin.Context, opts Options, accessor Accessor, rawParent, parentHeader string) {
	header := c.Writer.Header()

	// The parent header mirrors the inbound raw value verbatim; it depends
	// only on the extraction policy, not on the stored Info.
	if parentHeader != "" && rawParent != "" {
		header.Set(parentHeader, rawParent)
	}

	info := accessor.Get(c)
	if info == nil {
		return
	}
	if opts.Transaction.IncludeInResponse && info.TransactionID() != "" {
		header.Set(opts.Transaction.HeaderName, info.TransactionID())
	}
	if opts.Operation.IncludeInResponse && info.OperationID() != "" {
		header.Set(opts.Operation.HeaderName, info.OperationID())
	}
}
