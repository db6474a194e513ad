package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used by every calstats package.
const TracerName = "github.com/teemow/calstats"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrOperation  = "graph.operation"
	SpanAttrStatusCode = "graph.status_code"

	// SpanAttrUserDomain carries the domain of the mailbox being read. The
	// full address is never attached to spans.
	SpanAttrUserDomain = "graph.user_domain"

	SpanAttrDimension  = "calendar.dimension"
	SpanAttrEventCount = "calendar.event_count"
	SpanAttrPages      = "calendar.pages"
)

// SpanAttributeBuilder collects span attributes with consistent keys.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder returns an empty builder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 4)}
}

// WithUser adds the domain of upn; an empty upn adds nothing.
func (b *SpanAttributeBuilder) WithUser(upn string) *SpanAttributeBuilder {
	if upn != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrUserDomain, ExtractUserDomain(upn)))
	}
	return b
}

// WithDimension adds the aggregation dimension.
func (b *SpanAttributeBuilder) WithDimension(dimension string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrDimension, dimension))
	return b
}

// WithEventCount adds the number of events aggregated.
func (b *SpanAttributeBuilder) WithEventCount(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrEventCount, n))
	return b
}

// Build returns the collected attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartToolSpan starts a server span named "tool.<name>" for an MCP tool call.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, "tool."+toolName, trace.SpanKindServer,
		append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...))
}

// StartGraphSpan starts a client span named "graph.<operation>".
func StartGraphSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, "graph."+operation, trace.SpanKindClient,
		append([]attribute.KeyValue{attribute.String(SpanAttrOperation, operation)}, attrs...))
}

// SetSpanError records err on span and marks it failed. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks span OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
