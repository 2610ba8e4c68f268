package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/corrtrace/corrtrace/internal/logging"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics("test")
	logger := logging.NewLogger(logging.WithOutput(io.Discard))

	r := gin.New()
	r.Use(Middleware(m, logger))
	r.GET("/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/items/42", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	// The route template, not the concrete path, is the endpoint label.
	found := false
	for _, mf := range families {
		if mf.GetName() != "test_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "endpoint" && pair.GetValue() == "/items/:id" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected request counter labeled with route template")
	}
}

func TestMiddlewareLogsRequestErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf strings.Builder
	m := NewMetrics("test")
	logger := logging.NewLogger(logging.WithOutput(&buf))

	r := gin.New()
	r.Use(Middleware(m, logger))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(http.ErrBodyNotAllowed)
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/fail", nil)
	r.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), "request error") {
		t.Fatalf("expected error log entry, got %q", buf.String())
	}
}
