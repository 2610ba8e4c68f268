package config

import (
	"fmt"
	"time"

	"github.com/corrtrace/corrtrace/internal/correlation"
)

// Accessor selection values
const (
	AccessorContext = "context"
	AccessorNoop    = "noop"
)

// Config represents the complete application configuration.
type Config struct {
	Version     string            `yaml:"version"`
	Server      ServerConfig      `yaml:"server"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Audit       AuditConfig       `yaml:"audit"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// CorrelationConfig contains the correlation policy.
type CorrelationConfig struct {
	Accessor        string                `yaml:"accessor"`
	TraceIdentifier TraceIdentifierConfig `yaml:"trace_identifier"`
	Operation       OperationConfig       `yaml:"operation"`
	Transaction     TransactionConfig     `yaml:"transaction"`
	OperationParent ParentConfig          `yaml:"operation_parent"`
	UpstreamService ParentConfig          `yaml:"upstream_service"`
}

// TraceIdentifierConfig toggles trace identifier synchronization.
type TraceIdentifierConfig struct {
	Enabled bool `yaml:"enabled"`
}

// OperationConfig configures the server-assigned operation ID.
type OperationConfig struct {
	HeaderName        string `yaml:"header_name"`
	IncludeInResponse bool   `yaml:"include_in_response"`
}

// TransactionConfig configures transaction ID handling.
type TransactionConfig struct {
	HeaderName               string `yaml:"header_name"`
	AllowInRequest           bool   `yaml:"allow_in_request"`
	GenerateWhenNotSpecified bool   `yaml:"generate_when_not_specified"`
	IncludeInResponse        bool   `yaml:"include_in_response"`
}

// ParentConfig configures one operation-parent extraction path.
type ParentConfig struct {
	HeaderName         string `yaml:"header_name"`
	ExtractFromRequest bool   `yaml:"extract_from_request"`
}

// AuditConfig contains audit store configuration.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls requires cert_file and key_file when enabled")
		}
	}

	switch c.Correlation.Accessor {
	case AccessorContext, AccessorNoop:
	default:
		return fmt.Errorf("correlation.accessor must be %q or %q", AccessorContext, AccessorNoop)
	}
	if c.Correlation.Operation.HeaderName == "" {
		return fmt.Errorf("correlation.operation.header_name is required")
	}
	if c.Correlation.Transaction.HeaderName == "" {
		return fmt.Errorf("correlation.transaction.header_name is required")
	}
	if c.Correlation.OperationParent.HeaderName == "" {
		return fmt.Errorf("correlation.operation_parent.header_name is required")
	}
	if c.Correlation.UpstreamService.HeaderName == "" {
		return fmt.Errorf("correlation.upstream_service.header_name is required")
	}

	if c.Audit.Enabled && c.Audit.DBPath == "" {
		return fmt.Errorf("audit.db_path is required when audit is enabled")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}

	return nil
}

// Options converts the correlation configuration into the middleware
// policy. Generators are not configuration-file material; callers override
// them programmatically when needed.
func (c CorrelationConfig) Options() correlation.Options {
	return correlation.Options{
		Operation: correlation.OperationOptions{
			HeaderName:        c.Operation.HeaderName,
			IncludeInResponse: c.Operation.IncludeInResponse,
			GenerateID:        correlation.DefaultGenerator,
		},
		Transaction: correlation.TransactionOptions{
			HeaderName:               c.Transaction.HeaderName,
			AllowInRequest:           c.Transaction.AllowInRequest,
			GenerateWhenNotSpecified: c.Transaction.GenerateWhenNotSpecified,
			IncludeInResponse:        c.Transaction.IncludeInResponse,
			GenerateID:               correlation.DefaultGenerator,
		},
		OperationParent: correlation.ParentOptions{
			HeaderName:         c.OperationParent.HeaderName,
			ExtractFromRequest: c.OperationParent.ExtractFromRequest,
		},
		UpstreamService: correlation.ParentOptions{
			HeaderName:         c.UpstreamService.HeaderName,
			ExtractFromRequest: c.UpstreamService.ExtractFromRequest,
		},
	}
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}
