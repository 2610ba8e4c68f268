package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corrtrace/corrtrace/internal/correlation"
	"github.com/corrtrace/corrtrace/internal/logging"
)

func performAudited(t *testing.T, handler gin.HandlerFunc) *logging.MemoryAuditStore {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := logging.NewMemoryAuditStore()
	accessor := correlation.NewContextAccessor()

	r := gin.New()
	r.Use(AuditMiddleware(store, accessor))
	r.GET("/resource", func(c *gin.Context) {
		accessor.Set(c, correlation.NewInfo("op-1", "tx-1", "parent-1"))
		handler(c)
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/resource", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "corrtrace-test")
	r.ServeHTTP(w, req)

	return store
}

func lastEvent(t *testing.T, store *logging.MemoryAuditStore) *logging.AuditEvent {
	t.Helper()
	events, err := store.QueryEvents(context.Background(), logging.AuditQueryFilters{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestAuditMiddlewareRecordsSuccess(t *testing.T) {
	store := performAudited(t, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	event := lastEvent(t, store)
	assert.Equal(t, logging.APIAccess, event.EventType)
	assert.Equal(t, logging.StatusSuccess, event.Status)
	assert.Equal(t, "GET /resource", event.Action)
	assert.Equal(t, "/resource", event.Resource)
	assert.Equal(t, "op-1", event.OperationID)
	assert.Equal(t, "tx-1", event.TransactionID)
	assert.Equal(t, "parent-1", event.OperationParentID)
	assert.Equal(t, "corrtrace-test", event.Details["user_agent"])
}

func TestAuditMiddlewareRecordsFailureStatus(t *testing.T) {
	store := performAudited(t, func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	event := lastEvent(t, store)
	assert.Equal(t, logging.APIAccess, event.EventType)
	assert.Equal(t, logging.StatusFailure, event.Status)
}

func TestAuditMiddlewareRecordsCorrelationReject(t *testing.T) {
	store := performAudited(t, func(c *gin.Context) {
		c.Set(correlation.RejectedKey, true)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "rejected"})
	})

	event := lastEvent(t, store)
	assert.Equal(t, logging.CorrelationReject, event.EventType)
	assert.Equal(t, logging.StatusFailure, event.Status)
	assert.Equal(t, logging.SeverityWarning, event.Severity)
}
