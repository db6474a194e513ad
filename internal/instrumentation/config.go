package instrumentation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
)

// Config holds the OpenTelemetry settings. They are read from the standard
// OTEL_* variables plus a few calstats-specific ones; there are no flags.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname, which is the pod name in
	// Kubernetes.
	ServiceInstanceID string
	K8sNamespace      string
	K8sPodName        string

	// Enabled turns metrics and tracing on (INSTRUMENTATION_ENABLED).
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Spans carry Graph operation
	// names and mailbox hashes, so keep TLS outside local development.
	OTLPInsecure bool

	TraceSamplingRate  float64
	PrometheusEndpoint string

	// DetailedLabels adds the target mailbox domain to tool metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls audit entries for gate decisions and tool
// invocations.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs the caller address and target mailbox verbatim instead
	// of hashed or domain-level identifiers.
	IncludePII bool
}

// Environment variables read by ConfigFromLookup.
const (
	EnvServiceName       = "OTEL_SERVICE_NAME"
	EnvServiceInstanceID = "OTEL_SERVICE_INSTANCE_ID"
	EnvEnabled           = "INSTRUMENTATION_ENABLED"
	EnvMetricsExporter   = "METRICS_EXPORTER"
	EnvTracingExporter   = "TRACING_EXPORTER"
	EnvOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure      = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvSamplingRate      = "OTEL_TRACES_SAMPLER_ARG"
	EnvPrometheusPath    = "PROMETHEUS_ENDPOINT"
	EnvDetailedLabels    = "METRICS_DETAILED_LABELS"
	EnvAuditEnabled      = "AUDIT_LOGGING_ENABLED"
	EnvAuditIncludePII   = "AUDIT_LOGGING_INCLUDE_PII"
)

// DefaultConfig reads the configuration from the process environment.
func DefaultConfig() Config {
	return ConfigFromLookup(os.Getenv)
}

// ConfigFromLookup builds a Config from getenv. Unset or unparseable values
// fall back to the defaults.
func ConfigFromLookup(getenv func(string) string) Config {
	env := envReader(getenv)

	return Config{
		ServiceName:        env.str(EnvServiceName, "calstats"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  env.str(EnvServiceInstanceID, ""),
		K8sNamespace:       env.str("K8S_NAMESPACE", env.str("POD_NAMESPACE", "")),
		K8sPodName:         env.str("K8S_POD_NAME", env.str("HOSTNAME", "")),
		Enabled:            env.boolean(EnvEnabled, true),
		MetricsExporter:    env.str(EnvMetricsExporter, ExporterPrometheus),
		TracingExporter:    env.str(EnvTracingExporter, ExporterNone),
		OTLPEndpoint:       env.str(EnvOTLPEndpoint, ""),
		OTLPInsecure:       env.boolean(EnvOTLPInsecure, false),
		TraceSamplingRate:  env.float(EnvSamplingRate, 0.1),
		PrometheusEndpoint: env.str(EnvPrometheusPath, "/metrics"),
		DetailedLabels:     env.boolean(EnvDetailedLabels, false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env.boolean(EnvAuditEnabled, true),
			IncludePII: env.boolean(EnvAuditIncludePII, false),
		},
	}
}

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Validate checks exporter names, the sampling rate and that OTLP exporters
// have an endpoint. Empty exporter names are accepted.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}
	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter; set %s", EnvOTLPEndpoint)
	}
	return nil
}

type envReader func(string) string

func (r envReader) str(key, def string) string {
	if v := r(key); v != "" {
		return v
	}
	return def
}

func (r envReader) boolean(key string, def bool) bool {
	v, err := strconv.ParseBool(r(key))
	if err != nil {
		return def
	}
	return v
}

func (r envReader) float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(r(key), 64)
	if err != nil {
		return def
	}
	return v
}

// Metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// StatusTransportError labels Graph calls that never got a response.
	StatusTransportError = "transport_error"

	TokenResultSuccess = "success"
	TokenResultFailure = "failure"

	DenialMissingKey = "missing_key"
	DenialInvalidKey = "invalid_key"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
