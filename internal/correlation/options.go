package correlation

// Default header names. All are overridable per policy.
const (
	// DefaultOperationHeader carries the server-assigned operation ID on
	// responses
	DefaultOperationHeader = "X-Operation-ID"
	// DefaultTransactionHeader carries the transaction ID on requests and
	// responses
	DefaultTransactionHeader = "X-Transaction-ID"
	// DefaultParentHeader carries the upstream request identifier, possibly
	// in the hierarchical "|root.segment." format
	DefaultParentHeader = "Request-Id"
)

// OperationOptions controls the server-assigned operation ID. The value is
// never taken from request headers.
type OperationOptions struct {
	// HeaderName is the response header carrying the operation ID
	HeaderName string
	// IncludeInResponse controls whether the operation ID header is emitted
	IncludeInResponse bool
	// GenerateID produces the operation ID when no trace identifier was
	// seeded upstream
	GenerateID Generator
}

// TransactionOptions controls acceptance, generation, and emission of the
// transaction ID.
type TransactionOptions struct {
	// HeaderName is the request and response header carrying the
	// transaction ID
	HeaderName string
	// AllowInRequest permits clients to supply a transaction ID. When false
	// a request carrying the header is rejected with a client error.
	AllowInRequest bool
	// GenerateWhenNotSpecified synthesizes a transaction ID when the request
	// carries none
	GenerateWhenNotSpecified bool
	// IncludeInResponse controls whether the transaction ID header is
	// emitted, whether the value was echoed or generated
	IncludeInResponse bool
	// GenerateID produces synthesized transaction IDs
	GenerateID Generator
}

// ParentOptions controls one extraction path for the operation-parent ID.
// The parent ID is only ever extracted, never synthesized.
type ParentOptions struct {
	// HeaderName is the request header holding the upstream request
	// identifier
	HeaderName string
	// ExtractFromRequest enables parsing the parent ID out of the header
	ExtractFromRequest bool
}

// Options is the full correlation policy, resolved once at middleware
// construction and never mutated per request.
type Options struct {
	Operation   OperationOptions
	Transaction TransactionOptions

	// OperationParent and UpstreamService are two independent extraction
	// paths for the parent ID. They default to the same physical header;
	// when both are enabled and both headers are present, the
	// OperationParent path wins.
	OperationParent ParentOptions
	UpstreamService ParentOptions
}

// DefaultOptions returns the default correlation policy: operation and
// transaction IDs emitted on responses, inbound transaction IDs accepted,
// missing transaction IDs generated, and parent extraction enabled on the
// operation-parent path.
func DefaultOptions() Options {
	return Options{
		Operation: OperationOptions{
			HeaderName:        DefaultOperationHeader,
			IncludeInResponse: true,
			GenerateID:        DefaultGenerator,
		},
		Transaction: TransactionOptions{
			HeaderName:               DefaultTransactionHeader,
			AllowInRequest:           true,
			GenerateWhenNotSpecified: true,
			IncludeInResponse:        true,
			GenerateID:               DefaultGenerator,
		},
		OperationParent: ParentOptions{
			HeaderName:         DefaultParentHeader,
			ExtractFromRequest: true,
		},
		UpstreamService: ParentOptions{
			HeaderName:         DefaultParentHeader,
			ExtractFromRequest: false,
		},
	}
}

// withDefaults fills unset fields so a partially built Options is usable
func (o Options) withDefaults() Options {
	if o.Operation.HeaderName == "" {
		o.Operation.HeaderName = DefaultOperationHeader
	}
	if o.Operation.GenerateID == nil {
		o.Operation.GenerateID = DefaultGenerator
	}
	if o.Transaction.HeaderName == "" {
		o.Transaction.HeaderName = DefaultTransactionHeader
	}
	if o.Transaction.GenerateID == nil {
		o.Transaction.GenerateID = DefaultGenerator
	}
	if o.OperationParent.HeaderName == "" {
		o.OperationParent.HeaderName = DefaultParentHeader
	}
	if o.UpstreamService.HeaderName == "" {
		o.UpstreamService.HeaderName = DefaultParentHeader
	}
	return o
}
