package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures one MCP tool call for audit logging.
//
// TargetUser is the mailbox the tool read. It is PII; LogAttrs only emits its
// domain.
type ToolInvocation struct {
	Tool       string
	TargetUser string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithTargetUser sets the mailbox the tool operates on.
func (ti *ToolInvocation) WithTargetUser(upn string) *ToolInvocation {
	ti.TargetUser = upn
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed with the given error.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the invocation. The target mailbox is
// reduced to its domain unless includePII is set.
func (ti *ToolInvocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.TargetUser != "" {
		if includePII {
			attrs = append(attrs, slog.String("target_user", ti.TargetUser))
		} else {
			attrs = append(attrs, slog.String("user_domain", ExtractUserDomain(ti.TargetUser)))
		}
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// AccessDecision records the outcome of the API key gate for one request.
// It never carries the presented key.
type AccessDecision struct {
	Method     string
	Route      string
	RemoteAddr string
	RequestID  string
	Allowed    bool
	Reason     string
}

// LogAttrs returns slog attributes for the decision. The caller address is
// omitted unless includePII is set.
func (ad *AccessDecision) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("method", ad.Method),
		slog.String("route", ad.Route),
		slog.Bool("allowed", ad.Allowed),
	}
	if ad.Reason != "" {
		attrs = append(attrs, slog.String("reason", ad.Reason))
	}
	if ad.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", ad.RequestID))
	}
	if includePII && ad.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", ad.RemoteAddr))
	}
	return attrs
}

// AuditLogger provides structured audit logging for gate decisions and tool
// invocations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs a completed tool invocation.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	args := attrsToArgs(ti.LogAttrs(al.includePII))
	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// LogAccessDecision logs a gate decision. Denials are logged at warn level.
func (al *AuditLogger) LogAccessDecision(ad *AccessDecision) {
	if al == nil || !al.enabled {
		return
	}

	args := attrsToArgs(ad.LogAttrs(al.includePII))
	if ad.Allowed {
		al.logger.Debug("access_granted", args...)
	} else {
		al.logger.Warn("access_denied", args...)
	}
}

func attrsToArgs(attrs []slog.Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}
