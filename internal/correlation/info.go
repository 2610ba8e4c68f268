// Package correlation establishes and surfaces the per-request correlation
// context: the operation ID assigned to the current request, the transaction
// ID shared by related requests, and the ID of the upstream operation that
// caused this one.
package correlation

// Info is the immutable correlation context of a single request. The
// operation ID is always present; transaction and operation-parent IDs are
// empty when the corresponding policy left them unset.
type Info struct {
	operationID       string
	transactionID     string
	operationParentID string
}

// NewInfo creates a correlation context. Transaction and parent IDs may be
// empty.
func NewInfo(operationID, transactionID, operationParentID string) *Info {
	return &Info{
		operationID:       operationID,
		transactionID:     transactionID,
		operationParentID: operationParentID,
	}
}

// OperationID returns the identifier of the current request
func (i *Info) OperationID() string {
	return i.operationID
}

// TransactionID returns the identifier shared across related requests, or
// empty when transaction correlation is disabled
func (i *Info) TransactionID() string {
	return i.transactionID
}

// OperationParentID returns the identifier of the upstream operation, or
// empty when no parent was extracted
func (i *Info) OperationParentID() string {
	return i.operationParentID
}
