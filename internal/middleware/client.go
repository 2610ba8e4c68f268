package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corrtrace/corrtrace/internal/correlation"
	"github.com/corrtrace/corrtrace/pkg/hierarchical"
)

// MaxResponseBodySize is the maximum size of response body to read (1MB)
const MaxResponseBodySize = 1 << 20 // 1MB

// Client calls downstream services with the current correlation context
// propagated in the request headers. The operation ID travels as the parent
// of the downstream request, encoded in the hierarchical format, so the
// callee can extract it with its own correlation middleware.
type Client struct {
	baseURL    string
	options    correlation.Options
	httpClient *http.Client
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the timeout for HTTP requests.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new correlation-propagating client. Header names are
// taken from the correlation options.
func NewClient(baseURL string, options correlation.Options, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: baseURL,
		options: options,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do sends a request with the correlation headers derived from info. A nil
// info sends the request unadorned.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, info *correlation.Info) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.injectHeaders(req, info)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// injectHeaders writes the outbound correlation headers for info
func (c *Client) injectHeaders(req *http.Request, info *correlation.Info) {
	if info == nil {
		return
	}
	if id := info.TransactionID(); id != "" {
		req.Header.Set(c.options.Transaction.HeaderName, id)
	}
	if id := info.OperationID(); id != "" {
		// Downstream sees our operation as its parent.
		req.Header.Set(c.options.OperationParent.HeaderName, hierarchical.Prefix+id+".")
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health performs a health check on the service.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	return &health, nil
}

// CorrelationResponse represents the correlation context as reported by the
// service; absent identifiers are null.
type CorrelationResponse struct {
	OperationID       *string `json:"OperationId"`
	TransactionID     *string `json:"TransactionId"`
	OperationParentID *string `json:"OperationParentId"`
}

// GetCorrelation fetches the correlation context the service resolved for
// this request.
func (c *Client) GetCorrelation(ctx context.Context, info *correlation.Info) (*CorrelationResponse, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/correlation", nil, info)
	if err != nil {
		return nil, fmt.Errorf("correlation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
		return nil, fmt.Errorf("correlation request returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result CorrelationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode correlation response: %w", err)
	}

	return &result, nil
}

// Close closes the client and cleans up resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
