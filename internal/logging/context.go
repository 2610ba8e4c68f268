package logging

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

const (
	// OperationIDKey is the context key for the per-request operation ID
	OperationIDKey contextKey = "operation_id"
	// TransactionIDKey is the context key for the cross-request transaction ID
	TransactionIDKey contextKey = "transaction_id"
	// OperationParentIDKey is the context key for the upstream operation ID
	OperationParentIDKey contextKey = "operation_parent_id"
)

// WithOperationID adds an operation ID to the context
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, OperationIDKey, operationID)
}

// GetOperationID retrieves the operation ID from the context
// Returns empty string if not set
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTransactionID adds a transaction ID to the context
func WithTransactionID(ctx context.Context, transactionID string) context.Context {
	return context.WithValue(ctx, TransactionIDKey, transactionID)
}

// GetTransactionID retrieves the transaction ID from the context
// Returns empty string if not set
func GetTransactionID(ctx context.Context) string {
	if id, ok := ctx.Value(TransactionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithOperationParentID adds an operation parent ID to the context
func WithOperationParentID(ctx context.Context, parentID string) context.Context {
	return context.WithValue(ctx, OperationParentIDKey, parentID)
}

// GetOperationParentID retrieves the operation parent ID from the context
// Returns empty string if not set
func GetOperationParentID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationParentIDKey).(string); ok {
		return id
	}
	return ""
}

// GenerateID generates a new random identifier: 32 lowercase hex characters
// with no dashes
func GenerateID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// MustGetOperationID retrieves the operation ID from the context
// If not set, generates a new one and returns it
func MustGetOperationID(ctx context.Context) string {
	if id := GetOperationID(ctx); id != "" {
		return id
	}
	return GenerateID()
}
