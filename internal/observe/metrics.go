// Package observe provides application-wide observability primitives for
// glyphcmd: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all glyphcmd metrics.
const meterName = "github.com/MrWong99/glyphcmd"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Recognition ---

	// Recognitions counts finished recognitions. Attributes:
	//   attribute.String("strategy", ...), attribute.String("outcome", ...)
	Recognitions metric.Int64Counter

	// RecognitionDuration tracks end-to-end recognition latency.
	RecognitionDuration metric.Float64Histogram

	// Confidence tracks the final confidence of every recognition.
	Confidence metric.Float64Histogram

	// StageFailures counts decode failures per stage. Attributes:
	//   attribute.String("stage", ...), attribute.String("kind", ...)
	StageFailures metric.Int64Counter

	// --- Inference backend ---

	// InferenceDuration tracks backend round-trip latency. Attributes:
	//   attribute.String("backend", ...), attribute.String("stage", ...)
	InferenceDuration metric.Float64Histogram

	// ProviderRequests counts backend calls. Attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts backend failures. Attributes:
	//   attribute.String("backend", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Tokens counts prompt and completion tokens. Attributes:
	//   attribute.String("backend", ...), attribute.String("type", ...)
	Tokens metric.Int64Counter

	// CacheLookups counts recognition cache lookups. Attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// --- Templates ---

	// TemplateWarnings counts template load warnings by kind.
	TemplateWarnings metric.Int64Counter

	// --- Connections ---

	// ActiveConnections tracks open WebSocket connections. Attribute:
	//   attribute.String("endpoint", ...)
	ActiveConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// RateLimited counts requests rejected by the per-client rate limiter.
	// Attribute: attribute.String("endpoint", ...)
	RateLimited metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for model
// round trips, which range from tens of milliseconds to many seconds on
// small local hardware.
var latencyBuckets = []float64{
	0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Recognitions, err = m.Int64Counter("glyphcmd.recognitions",
		metric.WithDescription("Total recognitions by strategy and outcome."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDuration, err = m.Float64Histogram("glyphcmd.recognition.duration",
		metric.WithDescription("End-to-end recognition latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Confidence, err = m.Float64Histogram("glyphcmd.recognition.confidence",
		metric.WithDescription("Final confidence of recognitions."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageFailures, err = m.Int64Counter("glyphcmd.stage.failures",
		metric.WithDescription("Decode failures by pipeline stage and error kind."),
	); err != nil {
		return nil, err
	}

	if met.InferenceDuration, err = m.Float64Histogram("glyphcmd.inference.duration",
		metric.WithDescription("Latency of inference backend calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("glyphcmd.provider.requests",
		metric.WithDescription("Total inference backend requests by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("glyphcmd.provider.errors",
		metric.WithDescription("Total inference backend errors by backend and kind."),
	); err != nil {
		return nil, err
	}
	if met.Tokens, err = m.Int64Counter("glyphcmd.provider.tokens",
		metric.WithDescription("Tokens consumed by backend and token type."),
	); err != nil {
		return nil, err
	}

	if met.CacheLookups, err = m.Int64Counter("glyphcmd.recognition.cache_lookups",
		metric.WithDescription("Recognition cache lookups by result."),
	); err != nil {
		return nil, err
	}

	if met.TemplateWarnings, err = m.Int64Counter("glyphcmd.templates.load_warnings",
		metric.WithDescription("Template load warnings by kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveConnections, err = m.Int64UpDownCounter("glyphcmd.ws.active_connections",
		metric.WithDescription("Number of open WebSocket connections."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("glyphcmd.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.RateLimited, err = m.Int64Counter("glyphcmd.http.rate_limited",
		metric.WithDescription("Requests rejected by the per-client rate limiter."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRecognition records a finished recognition.
func (m *Metrics) RecordRecognition(ctx context.Context, strategy, outcome string, confidence float64, d time.Duration) {
	m.Recognitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	))
	m.RecognitionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("strategy", strategy)))
	m.Confidence.Record(ctx, confidence, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordStageFailure records a decode failure in a pipeline stage.
func (m *Metrics) RecordStageFailure(ctx context.Context, stage, kind string) {
	m.StageFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("kind", kind),
	))
}

// RecordInference records one backend call. An empty kind counts as
// success; otherwise kind classifies the failure.
func (m *Metrics) RecordInference(ctx context.Context, backend, stage string, d time.Duration, kind string) {
	status := "ok"
	if kind != "" {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("kind", kind),
		))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
	m.InferenceDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("stage", stage),
	))
}

// RecordTokens records token usage reported by a backend.
func (m *Metrics) RecordTokens(ctx context.Context, backend string, prompt, completion int) {
	if prompt > 0 {
		m.Tokens.Add(ctx, int64(prompt), metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("type", "prompt"),
		))
	}
	if completion > 0 {
		m.Tokens.Add(ctx, int64(completion), metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("type", "completion"),
		))
	}
}

// RecordCacheLookup records a recognition cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(ctx context.Context, endpoint string) {
	m.RateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordTemplateWarning records a template load warning.
func (m *Metrics) RecordTemplateWarning(ctx context.Context, kind string) {
	m.TemplateWarnings.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// ConnectionOpened increments the open-connection gauge for endpoint and
// returns a func that decrements it again.
func (m *Metrics) ConnectionOpened(ctx context.Context, endpoint string) func() {
	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	m.ActiveConnections.Add(ctx, 1, attrs)
	return func() { m.ActiveConnections.Add(context.Background(), -1, attrs) }
}
