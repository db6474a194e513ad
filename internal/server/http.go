package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/calstats/internal/instrumentation"
)

const (
	// DefaultHTTPAddr is the default listen address of the API.
	DefaultHTTPAddr = ":8080"

	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout covers a token request plus a Graph call.
	DefaultWriteTimeout = 90 * time.Second

	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second

	// MCPEndpoint is where the MCP streamable HTTP transport is mounted.
	MCPEndpoint = "/mcp"
)

// HTTPServerConfig configures the public API server.
type HTTPServerConfig struct {
	Addr   string
	APIKey string

	// RequireKeyForProfile puts /profile behind the access gate. The other
	// data routes are always gated.
	RequireKeyForProfile bool

	// MCPServer, when set, is served under MCPEndpoint behind the gate.
	MCPServer *mcpserver.MCPServer

	// DisableStreaming makes the MCP endpoint answer with plain JSON.
	DisableStreaming bool
}

// HTTPServer serves the calendar API, health probes and the MCP endpoint.
type HTTPServer struct {
	sc      *ServerContext
	gate    *AccessGate
	health  *HealthChecker
	logger  *slog.Logger
	addr    string
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// NewHTTPServer builds the routing table and middleware chain.
func NewHTTPServer(sc *ServerContext, cfg HTTPServerConfig) (*HTTPServer, error) {
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultHTTPAddr
	}

	s := &HTTPServer{
		sc:     sc,
		gate:   NewAccessGate(cfg.APIKey),
		health: NewHealthChecker(sc),
		logger: sc.Logger().With("component", "http"),
		addr:   cfg.Addr,
	}

	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)

	profile := http.Handler(http.HandlerFunc(s.handleProfile))
	if cfg.RequireKeyForProfile {
		profile = s.requireKey(profile)
	}
	mux.Handle("GET /profile", profile)
	mux.Handle("GET /calendar/view", s.requireKey(http.HandlerFunc(s.handleCalendarView)))
	mux.Handle("GET /stats", s.requireKey(http.HandlerFunc(s.handleStats)))

	if cfg.MCPServer != nil {
		var mcpHandler http.Handler
		if cfg.DisableStreaming {
			mcpHandler = mcpserver.NewStreamableHTTPServer(cfg.MCPServer,
				mcpserver.WithEndpointPath(MCPEndpoint),
				mcpserver.WithDisableStreaming(true),
			)
		} else {
			mcpHandler = mcpserver.NewStreamableHTTPServer(cfg.MCPServer,
				mcpserver.WithEndpointPath(MCPEndpoint),
			)
		}
		mux.Handle(MCPEndpoint, s.requireKey(mcpHandler))
	}

	var handler http.Handler = mux
	handler = withAccessLog(s.logger, sc.Metrics, handler)
	handler = withRecovery(s.logger, handler)
	handler = withRequestID(handler)
	s.handler = otelhttp.NewHandler(handler, "calstats",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + instrumentation.NormalizeRoute(r.URL.Path)
		}),
	)

	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// HealthChecker returns the health checker backing the probe endpoints.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.health
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *HTTPServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start that closes ready once the listener is bound.
func (s *HTTPServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}
	return srv.Serve(ln)
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return srv.Shutdown(ctx)
}
