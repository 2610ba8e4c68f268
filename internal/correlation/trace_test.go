package correlation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTraceIdentifier(t *testing.T, opts Options, headers map[string]string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seeded string
	r := gin.New()
	r.Use(TraceIdentifier(opts))
	r.GET("/", func(c *gin.Context) {
		seeded = TraceIdentifierFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return seeded
}

func TestTraceIdentifierSeedsRoot(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"hierarchical", "|root.child.", "root"},
		{"hierarchical no trailing dot", "|root.child", "root"},
		{"flat", "plain-id", "plain-id"},
		{"root only", "|root.", "root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runTraceIdentifier(t, DefaultOptions(), map[string]string{
				DefaultParentHeader: tt.header,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraceIdentifierAbsentHeader(t *testing.T) {
	got := runTraceIdentifier(t, DefaultOptions(), nil)
	assert.Empty(t, got)
}

func TestTraceIdentifierFromEmptyContext(t *testing.T) {
	c := newTestContext()
	assert.Empty(t, TraceIdentifierFrom(c))
}
