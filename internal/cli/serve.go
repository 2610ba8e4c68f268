package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corrtrace/corrtrace/internal/api"
	"github.com/corrtrace/corrtrace/internal/config"
	"github.com/corrtrace/corrtrace/internal/logging"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the CorrTrace server",
	Long: `Start the CorrTrace server in main mode.

This command starts the HTTP server that assigns correlation identifiers
to incoming requests, records the audit trail, and serves metrics.

Example:
  corrtrace serve --config config.yaml

The server will start listening on the address configured in the config file.`,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
	Watch      bool
}

func init() {
	serveCmd.RunE = runServe
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "1.3", "Minimum TLS version (1.2 or 1.3)")
	serveCmd.Flags().BoolVar(&serveFlags.Watch, "watch", false, "Reload configuration on file change")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting CorrTrace server...")
		log.Printf("Config path: %s", globalFlags.Config)
	}

	// Load configuration
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyServeFlags(cfg)

	if globalFlags.Verbose {
		log.Printf("Configuration loaded successfully")
		log.Printf("Server host: %s, port: %d", cfg.Server.Host, cfg.Server.HTTPPort)
		if cfg.Server.TLS.Enabled {
			log.Printf("TLS enabled: true, cert: %s, min_version: %s", cfg.Server.TLS.CertFile, cfg.Server.TLS.MinVersion)
		}
	}

	// Validate TLS configuration if enabled
	if cfg.Server.TLS.Enabled {
		if err := validateTLSConfig(cfg.Server.TLS); err != nil {
			return fmt.Errorf("TLS validation failed: %w", err)
		}
		if globalFlags.Verbose {
			log.Println("TLS configuration validated successfully")
		}
	}

	auditStore, err := buildAuditStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}

	if serveFlags.Watch {
		loader.SetOnChange(func(updated *config.Config) {
			log.Printf("Configuration reloaded from %s", globalFlags.Config)
		})
		if err := loader.StartWatcher(); err != nil {
			log.Printf("Config watcher disabled: %v", err)
		} else {
			defer loader.StopWatcher()
		}
	}

	server := api.NewServer(cfg, auditStore)

	// Setup graceful shutdown
	setupGracefulShutdown(server, cfg.Server.ShutdownTimeout)

	addr := cfg.Server.Addr()
	if cfg.Server.TLS.Enabled {
		log.Printf("Starting CorrTrace HTTPS server on %s", addr)
		log.Printf("TLS cert: %s, key: %s, min_version: %s", cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, cfg.Server.TLS.MinVersion)
		if err := server.RunTLS(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	log.Printf("Starting CorrTrace HTTP server on %s", addr)
	if cfg.Audit.Enabled {
		log.Printf("Audit store: %s (WAL mode enabled)", cfg.Audit.DBPath)
	}

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// applyServeFlags overlays CLI flags onto the loaded configuration.
func applyServeFlags(cfg *config.Config) {
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	// The flag carries a default, so only an explicitly passed --timeout
	// overrides the configured shutdown timeout.
	if serveCmd.Flags().Changed("timeout") && serveFlags.Timeout > 0 {
		cfg.Server.ShutdownTimeout = serveFlags.Timeout
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}
}

// buildAuditStore opens the SQLite audit store when auditing is enabled,
// falling back to the in-memory store otherwise.
func buildAuditStore(cfg *config.Config) (logging.AuditStore, error) {
	if !cfg.Audit.Enabled {
		return logging.NewMemoryAuditStore(), nil
	}
	store, err := logging.NewSQLiteAuditStoreWithRetention(cfg.Audit.DBPath, cfg.Audit.RetentionDays)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// validateTLSConfig validates TLS configuration
func validateTLSConfig(tls config.TLSConfig) error {
	if tls.CertFile == "" {
		return fmt.Errorf("TLS certificate file is required when TLS is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("TLS key file is required when TLS is enabled")
	}

	// Check if certificate file exists
	if _, err := os.Stat(tls.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file does not exist: %s", tls.CertFile)
	}

	// Check if key file exists
	if _, err := os.Stat(tls.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file does not exist: %s", tls.KeyFile)
	}

	// Validate TLS version
	if tls.MinVersion != "" && tls.MinVersion != "1.2" && tls.MinVersion != "1.3" {
		return fmt.Errorf("TLS min_version must be either \"1.2\" or \"1.3\", got: %s", tls.MinVersion)
	}

	return nil
}

// setupGracefulShutdown handles graceful shutdown of all components
func setupGracefulShutdown(server *api.Server, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Shutdown server (stops HTTP listener and audit store)
		log.Println("Shutting down API server...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
