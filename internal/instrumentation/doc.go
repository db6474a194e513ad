// Package instrumentation provides OpenTelemetry instrumentation for calstats.
//
// This package enables observability through:
//   - OpenTelemetry metrics for HTTP requests, Graph calls, token acquisitions
//     and access gate decisions
//   - Distributed tracing for inbound requests and Graph calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support
//   - Audit logging of gate decisions and MCP tool invocations
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Graph Metrics:
//   - graph_api_requests_total: Counter of Graph requests by operation and status
//   - graph_api_request_duration_seconds: Histogram of Graph request durations
//
// Identity Metrics:
//   - oauth_token_acquisitions_total: Counter of client-credential grants by result
//   - oauth_token_acquisition_duration_seconds: Histogram of grant durations
//
// Access and aggregation:
//   - access_gate_denials_total: Counter of gate rejections by route and reason
//   - calendar_events_aggregated_total: Counter of events reduced by dimension
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for inbound HTTP requests (via otelhttp), MCP tool
// invocations (tool.<name>) and Graph calls (graph.<operation>).
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calstats)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: audit log behaviour
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGraphRequest(ctx, instrumentation.OperationCalendarView, "200", time.Since(start))
package instrumentation
