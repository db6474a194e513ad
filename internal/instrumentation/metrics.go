package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrRoute     = "route"
	attrReason    = "reason"
	attrDimension = "dimension"
	attrTool      = "tool"
	attrUser      = "user_domain"
)

// Metrics provides methods for recording observability metrics.
//
// The zero value is a valid no-op recorder, so callers never need to
// nil-check the individual instruments.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Graph API metrics
	graphRequestsTotal   metric.Int64Counter
	graphRequestDuration metric.Float64Histogram

	// Identity metrics
	tokenAcquisitionsTotal   metric.Int64Counter
	tokenAcquisitionDuration metric.Float64Histogram

	// Access gate metrics
	accessDenialsTotal metric.Int64Counter

	// Aggregation metrics
	eventsAggregatedTotal metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.graphRequestsTotal, err = meter.Int64Counter(
		"graph_api_requests_total",
		metric.WithDescription("Total number of Microsoft Graph requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph_api_requests_total counter: %w", err)
	}

	m.graphRequestDuration, err = meter.Float64Histogram(
		"graph_api_request_duration_seconds",
		metric.WithDescription("Microsoft Graph request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph_api_request_duration_seconds histogram: %w", err)
	}

	m.tokenAcquisitionsTotal, err = meter.Int64Counter(
		"oauth_token_acquisitions_total",
		metric.WithDescription("Total number of client-credential token acquisitions"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_acquisitions_total counter: %w", err)
	}

	m.tokenAcquisitionDuration, err = meter.Float64Histogram(
		"oauth_token_acquisition_duration_seconds",
		metric.WithDescription("Client-credential token request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_acquisition_duration_seconds histogram: %w", err)
	}

	m.accessDenialsTotal, err = meter.Int64Counter(
		"access_gate_denials_total",
		metric.WithDescription("Total number of requests rejected by the API key gate"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access_gate_denials_total counter: %w", err)
	}

	m.eventsAggregatedTotal, err = meter.Int64Counter(
		"calendar_events_aggregated_total",
		metric.WithDescription("Total number of calendar events reduced into time buckets"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_events_aggregated_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGraphRequest records a Microsoft Graph request.
//
// Parameters:
//   - operation: Graph operation (mailbox_settings, calendar_view)
//   - status: HTTP status code as a string, or "transport_error"
//   - duration: Time taken for the request
func (m *Metrics) RecordGraphRequest(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.graphRequestsTotal == nil || m.graphRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.graphRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.graphRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenAcquisition records a client-credential grant against the
// identity provider. Result should be one of: "success", "failure".
// Cache hits are not recorded.
func (m *Metrics) RecordTokenAcquisition(ctx context.Context, result string, duration time.Duration) {
	if m == nil || m.tokenAcquisitionsTotal == nil || m.tokenAcquisitionDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.tokenAcquisitionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.tokenAcquisitionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAccessDenial records a request rejected by the access gate.
// Reason should be one of: "missing_key", "invalid_key".
func (m *Metrics) RecordAccessDenial(ctx context.Context, route, reason string) {
	if m == nil || m.accessDenialsTotal == nil {
		return
	}

	m.accessDenialsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrRoute, route),
		attribute.String(attrReason, reason),
	))
}

// RecordEventsAggregated records how many events one aggregation consumed.
func (m *Metrics) RecordEventsAggregated(ctx context.Context, dimension string, count int) {
	if m == nil || m.eventsAggregatedTotal == nil || count <= 0 {
		return
	}

	m.eventsAggregatedTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrDimension, dimension),
	))
}

// RecordToolInvocationWithUser records an MCP tool invocation and, when
// detailed labels are enabled, the domain of the mailbox it read.
func (m *Metrics) RecordToolInvocationWithUser(ctx context.Context, toolName, status, user string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && user != "" {
		attrs = append(attrs, attribute.String(attrUser, ExtractUserDomain(user)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
