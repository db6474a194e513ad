package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/calstats/internal/calendar"
	"github.com/teemow/calstats/internal/identity"
	"github.com/teemow/calstats/internal/instrumentation"
)

// TokenStatusReporter exposes the token cache state to readiness checks.
type TokenStatusReporter interface {
	Status() identity.TokenStatus
}

// ServerContextConfig holds the dependencies of a ServerContext.
type ServerContextConfig struct {
	Calendar   *calendar.Service
	TargetUser string

	// Tokens is optional; without it readiness does not report the token cache.
	Tokens TokenStatusReporter

	Logger *slog.Logger
}

// ServerContext holds the dependencies shared by the HTTP handlers and the
// MCP tools.
type ServerContext struct {
	ctx        context.Context
	cancel     context.CancelFunc
	calendar   *calendar.Service
	targetUser string
	tokens     TokenStatusReporter
	logger     *slog.Logger

	mu          sync.RWMutex
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	shutdown    bool
}

// NewServerContext creates a server context bound to ctx.
func NewServerContext(ctx context.Context, cfg ServerContextConfig) (*ServerContext, error) {
	if cfg.Calendar == nil {
		return nil, fmt.Errorf("calendar service is required")
	}
	if cfg.TargetUser == "" {
		return nil, fmt.Errorf("target user is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		calendar:   cfg.Calendar,
		targetUser: cfg.TargetUser,
		tokens:     cfg.Tokens,
		logger:     logger,
	}, nil
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Calendar returns the calendar service.
func (sc *ServerContext) Calendar() *calendar.Service {
	return sc.calendar
}

// TargetUser returns the mailbox whose calendar is served.
func (sc *ServerContext) TargetUser() string {
	return sc.targetUser
}

// TokenStatus reports the token cache state. ok is false when no reporter
// was configured.
func (sc *ServerContext) TokenStatus() (status identity.TokenStatus, ok bool) {
	if sc.tokens == nil {
		return identity.TokenStatus{}, false
	}
	return sc.tokens.Status(), true
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, or nil if instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// AuditLogger returns the audit logger, or nil if not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
