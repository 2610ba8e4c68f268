package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corrtrace/corrtrace/internal/correlation"
)

func validConfig() *Config {
	cfg, err := Parse([]byte(`version: "1"`))
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"missing version", func(c *Config) { c.Version = "" }, "version is required"},
		{"port too low", func(c *Config) { c.Server.HTTPPort = 0 }, "http_port"},
		{"port too high", func(c *Config) { c.Server.HTTPPort = 70000 }, "http_port"},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "log_level"},
		{"tls without cert", func(c *Config) { c.Server.TLS.Enabled = true }, "cert_file"},
		{"bad accessor", func(c *Config) { c.Correlation.Accessor = "global" }, "accessor"},
		{"empty operation header", func(c *Config) { c.Correlation.Operation.HeaderName = "" }, "operation.header_name"},
		{"empty transaction header", func(c *Config) { c.Correlation.Transaction.HeaderName = "" }, "transaction.header_name"},
		{"empty parent header", func(c *Config) { c.Correlation.OperationParent.HeaderName = "" }, "operation_parent.header_name"},
		{"audit without path", func(c *Config) { c.Audit.Enabled = true; c.Audit.DBPath = "" }, "db_path"},
		{"negative retention", func(c *Config) { c.Audit.RetentionDays = -1 }, "retention_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"`))
	require.NoError(t, err)

	assert.Equal(t, 8417, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, AccessorContext, cfg.Correlation.Accessor)
	assert.Equal(t, correlation.DefaultOperationHeader, cfg.Correlation.Operation.HeaderName)
	assert.True(t, cfg.Correlation.Operation.IncludeInResponse)
	assert.Equal(t, correlation.DefaultTransactionHeader, cfg.Correlation.Transaction.HeaderName)
	assert.True(t, cfg.Correlation.Transaction.AllowInRequest)
	assert.True(t, cfg.Correlation.Transaction.GenerateWhenNotSpecified)
	assert.Equal(t, correlation.DefaultParentHeader, cfg.Correlation.OperationParent.HeaderName)
	assert.True(t, cfg.Correlation.OperationParent.ExtractFromRequest)
	assert.False(t, cfg.Correlation.UpstreamService.ExtractFromRequest)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
version: "1"
server:
  host: 0.0.0.0
  http_port: 9000
correlation:
  accessor: noop
  transaction:
    header_name: X-Tx
    allow_in_request: false
    generate_when_not_specified: false
    include_in_response: false
audit:
  enabled: true
  db_path: ./data/audit.db
  retention_days: 7
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, AccessorNoop, cfg.Correlation.Accessor)
	assert.Equal(t, "X-Tx", cfg.Correlation.Transaction.HeaderName)
	assert.False(t, cfg.Correlation.Transaction.AllowInRequest)
	assert.False(t, cfg.Correlation.Transaction.GenerateWhenNotSpecified)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 7, cfg.Audit.RetentionDays)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestCorrelationOptionsBridge(t *testing.T) {
	cfg := validConfig()
	cfg.Correlation.Transaction.AllowInRequest = false
	cfg.Correlation.UpstreamService.ExtractFromRequest = true

	opts := cfg.Correlation.Options()

	assert.Equal(t, correlation.DefaultOperationHeader, opts.Operation.HeaderName)
	assert.False(t, opts.Transaction.AllowInRequest)
	assert.True(t, opts.OperationParent.ExtractFromRequest)
	assert.True(t, opts.UpstreamService.ExtractFromRequest)
	assert.NotNil(t, opts.Operation.GenerateID)
	assert.NotNil(t, opts.Transaction.GenerateID)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8417, cfg.Server.HTTPPort)
}
