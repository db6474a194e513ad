package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calstats/internal/instrumentation"
	"github.com/teemow/calstats/internal/logging"
	"github.com/teemow/calstats/internal/resources"
	"github.com/teemow/calstats/internal/server"
	"github.com/teemow/calstats/internal/tools/calendar_tools"
)

// Supported values of --transport.
const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

const (
	shutdownTimeout        = 30 * time.Second
	metricsStartupTimeout  = 5 * time.Second
	metricsShutdownTimeout = 10 * time.Second
)

type serveOptions struct {
	log              logOptions
	transport        string
	disableStreaming bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calendar statistics service",
		Long: `Start the calendar statistics service.

With --transport http (default) the service answers GET /profile,
GET /calendar/view and GET /stats, serves the MCP tools under /mcp and
exposes health probes. Data routes require the x-api-key header.

With --transport stdio the MCP tools are served on stdin/stdout and no HTTP
listener is opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportHTTP, "Transport type: http or stdio")
	cmd.Flags().BoolVar(&opts.disableStreaming, "disable-streaming", false, "Disable streaming on the MCP endpoint (for compatibility with certain clients)")
	addLogFlags(cmd, &opts.log)
	addConfigFlags(cmd, upstreamFlags)
	addConfigFlags(cmd, serveFlags)

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) (retErr error) {
	if opts.transport != transportHTTP && opts.transport != transportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", opts.transport, transportHTTP, transportStdio)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the MCP protocol in stdio mode, so logs always go to stderr.
	logger, err := opts.log.newLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg := loadConfig(cmd, os.Getenv)
	validate := cfg.Validate
	if opts.transport == transportStdio {
		validate = cfg.ValidateUpstream
	}
	if err := validate(); err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			retErr = errors.Join(retErr, fmt.Errorf("instrumentation shutdown: %w", err))
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	// Start metrics server if enabled and not in stdio mode
	if opts.transport == transportHTTP && cfg.Metrics.Enabled && provider.ServesPrometheus() {
		metricsServer, err := startMetricsServer(cfg.Metrics.Addr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				retErr = errors.Join(retErr, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}()
	}

	a, err := newApp(cfg, logger, metrics)
	if err != nil {
		return err
	}

	sc, err := a.serverContext(shutdownCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		retErr = errors.Join(retErr, sc.Shutdown())
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		sc.SetMetrics(metrics)
		sc.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	mcpSrv := mcpserver.NewMCPServer("calstats", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}
	if err := resources.RegisterCalendarResources(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register calendar resources: %w", err)
	}

	logger.Info("starting calstats",
		"version", version,
		"transport", opts.transport,
		logging.UserHash(cfg.Graph.TargetUser),
		logging.Domain(cfg.Graph.TargetUser))

	if opts.transport == transportStdio {
		return runStdioServer(mcpSrv)
	}

	httpServer, err := server.NewHTTPServer(sc, server.HTTPServerConfig{
		Addr:                 cfg.HTTPAddr,
		APIKey:               cfg.Access.APIKey,
		RequireKeyForProfile: cfg.Access.RequireKeyForProfile,
		MCPServer:            mcpSrv,
		DisableStreaming:     opts.disableStreaming,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	return runHTTPServer(shutdownCtx, httpServer, logger)
}

func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartupTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// runHTTPServer serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func runHTTPServer(ctx context.Context, httpServer *server.HTTPServer, logger *slog.Logger) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

