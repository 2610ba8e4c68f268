package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corrtrace/corrtrace/internal/correlation"
)

func TestClientInjectsCorrelationHeaders(t *testing.T) {
	var gotTransaction, gotParent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTransaction = r.Header.Get(correlation.DefaultTransactionHeader)
		gotParent = r.Header.Get(correlation.DefaultParentHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, correlation.DefaultOptions())
	defer client.Close()

	info := correlation.NewInfo("op-123", "tx-456", "")
	resp, err := client.Do(context.Background(), http.MethodGet, "/downstream", nil, info)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "tx-456", gotTransaction)
	// The callee sees our operation as its parent, in hierarchical form.
	assert.Equal(t, "|op-123.", gotParent)
}

func TestClientNilInfoSendsNoHeaders(t *testing.T) {
	var sawTransaction, sawParent bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawTransaction = r.Header.Get(correlation.DefaultTransactionHeader) != ""
		sawParent = r.Header.Get(correlation.DefaultParentHeader) != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, correlation.DefaultOptions())
	defer client.Close()

	resp, err := client.Do(context.Background(), http.MethodGet, "/downstream", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.False(t, sawTransaction)
	assert.False(t, sawParent)
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, correlation.DefaultOptions(), WithTimeout(5*time.Second))
	defer client.Close()

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClientGetCorrelation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Echo the parsed parent back the way the service would.
		parent := "op-123"
		json.NewEncoder(w).Encode(CorrelationResponse{
			OperationID:       strPtr("remote-op"),
			TransactionID:     strPtr(r.Header.Get(correlation.DefaultTransactionHeader)),
			OperationParentID: &parent,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, correlation.DefaultOptions())
	defer client.Close()

	info := correlation.NewInfo("op-123", "tx-456", "")
	resp, err := client.GetCorrelation(context.Background(), info)
	require.NoError(t, err)

	require.NotNil(t, resp.OperationParentID)
	assert.Equal(t, "op-123", *resp.OperationParentID)
	require.NotNil(t, resp.TransactionID)
	assert.Equal(t, "tx-456", *resp.TransactionID)
}

func TestClientGetCorrelationErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, correlation.DefaultOptions())
	defer client.Close()

	_, err := client.GetCorrelation(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func strPtr(s string) *string {
	return &s
}
