package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corrtrace/corrtrace/internal/config"
	"github.com/corrtrace/corrtrace/internal/correlation"
	"github.com/corrtrace/corrtrace/internal/errors"
	"github.com/corrtrace/corrtrace/internal/logging"
	"github.com/corrtrace/corrtrace/internal/metrics"
	"github.com/corrtrace/corrtrace/internal/middleware"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	options    correlation.Options
	accessor   correlation.Accessor
	audit      logging.AuditStore
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
	tlsConfig  config.TLSConfig

	traceIdentifier bool
}

// ServerOption overrides pieces of the server wiring, mainly for tests and
// for programmatically customized generators or accessors.
type ServerOption func(*Server)

// WithCorrelationOptions replaces the correlation policy built from config
func WithCorrelationOptions(options correlation.Options) ServerOption {
	return func(s *Server) {
		s.options = options
	}
}

// WithAccessor replaces the correlation accessor
func WithAccessor(accessor correlation.Accessor) ServerOption {
	return func(s *Server) {
		s.accessor = accessor
	}
}

// WithLogger replaces the logger
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, auditStore logging.AuditStore, opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		router:          gin.New(),
		config:          cfg.Server,
		options:         cfg.Correlation.Options(),
		audit:           auditStore,
		metrics:         metrics.NewMetrics("corrtrace"),
		logger:          logging.NewLogger(logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel))),
		tlsConfig:       cfg.Server.TLS,
		traceIdentifier: cfg.Correlation.TraceIdentifier.Enabled,
	}

	switch cfg.Correlation.Accessor {
	case config.AccessorNoop:
		server.accessor = correlation.NewNoopAccessor()
	default:
		server.accessor = correlation.NewContextAccessor()
	}

	for _, opt := range opts {
		opt(server)
	}

	server.router.HandleMethodNotAllowed = true

	// Add recovery middleware with logging
	server.router.Use(gin.Recovery())

	// Add metrics and logging middleware
	server.router.Use(metrics.Middleware(server.metrics, server.logger))
	server.router.Use(loggingMiddleware(server.logger))

	// Audit sits outside the correlation middleware so it observes the
	// final outcome, rejections included
	server.router.Use(middleware.AuditMiddleware(server.audit, server.accessor))

	if server.traceIdentifier {
		server.router.Use(correlation.TraceIdentifier(server.options))
	}
	server.router.Use(correlation.Middleware(server.options, server.accessor, server.logger, server.metrics))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// The correlation middleware stamped the request context, so the
		// completion log carries the resolved identifiers
		duration := time.Since(start).Seconds()
		logger.InfoWithContext(c.Request.Context(), "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check
	s.router.GET("/health", s.handleHealth)

	// Correlation context endpoints
	s.router.GET("/correlation", s.handleGetCorrelation)
	s.router.POST("/correlation", s.handleSetCorrelation)

	// Audit endpoints
	s.router.GET("/audit/events", s.handleAuditEvents)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// correlationResponse surfaces the correlation context of the request.
// Absent identifiers are null, not empty strings.
type correlationResponse struct {
	OperationID       *string `json:"OperationId"`
	TransactionID     *string `json:"TransactionId"`
	OperationParentID *string `json:"OperationParentId"`
}

func newCorrelationResponse(info *correlation.Info) correlationResponse {
	var resp correlationResponse
	if info == nil {
		return resp
	}
	if id := info.OperationID(); id != "" {
		resp.OperationID = &id
	}
	if id := info.TransactionID(); id != "" {
		resp.TransactionID = &id
	}
	if id := info.OperationParentID(); id != "" {
		resp.OperationParentID = &id
	}
	return resp
}

// handleGetCorrelation reports the correlation context resolved for this
// request
func (s *Server) handleGetCorrelation(c *gin.Context) {
	info := s.accessor.Get(c)
	c.JSON(http.StatusOK, newCorrelationResponse(info))
}

// setCorrelationRequest lets a caller replace the stored correlation
// context for the remainder of the request
type setCorrelationRequest struct {
	OperationID       string `json:"operation_id"`
	TransactionID     string `json:"transaction_id"`
	OperationParentID string `json:"operation_parent_id"`
}

// handleSetCorrelation replaces the correlation context through the
// accessor; the response headers reflect the replacement because the
// middleware re-reads the accessor when composing them
func (s *Server) handleSetCorrelation(c *gin.Context) {
	var req setCorrelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	operationID := req.OperationID
	if operationID == "" {
		if current := s.accessor.Get(c); current != nil {
			operationID = current.OperationID()
		} else {
			operationID = correlation.DefaultGenerator()
		}
	}

	info := correlation.NewInfo(operationID, req.TransactionID, req.OperationParentID)
	s.accessor.Set(c, info)

	c.JSON(http.StatusOK, newCorrelationResponse(s.accessor.Get(c)))
}

// handleAuditEvents lists recent audit events
func (s *Server) handleAuditEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = parsed
	}

	events, err := s.audit.QueryEvents(c.Request.Context(), logging.AuditQueryFilters{
		EventType: c.Query("type"),
		Status:    c.Query("status"),
		Limit:     limit,
		OrderBy:   "timestamp",
		OrderDesc: true,
	})
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "failed to query audit events", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit events"})
		return
	}

	if events == nil {
		events = []*logging.AuditEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Run starts the HTTP or HTTPS server based on TLS configuration
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.tlsConfig.Enabled {
		return s.RunTLS()
	}

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// RunTLS starts the HTTPS server with TLS configuration
func (s *Server) RunTLS() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	s.logger.Info("starting HTTPS server", "addr", addr, "cert_file", s.tlsConfig.CertFile, "min_version", s.tlsConfig.MinVersion)

	srv, err := NewHTTPSServerWithConfig(addr, s.tlsConfig.CertFile, s.tlsConfig.KeyFile, s.tlsConfig.MinVersion, s.router)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	s.httpServer = srv

	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server and its components
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	// Stop accepting new connections
	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err.Error())
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	// Flush and close the audit store
	if s.audit != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.audit.Close(); err != nil {
				errs <- fmt.Errorf("audit store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}
