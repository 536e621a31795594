// Package observe provides OpenTelemetry metrics for the command pipeline.
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/varnahq/varna"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// PipelineDuration tracks end-to-end utterance resolution latency.
	PipelineDuration metric.Float64Histogram

	// SemanticDuration tracks the embedding stage, the only slow step.
	SemanticDuration metric.Float64Histogram

	// --- Counters ---

	// Matches counts resolved utterances. Use with attributes:
	//   attribute.String("method", ...), attribute.String("tier", ...)
	Matches metric.Int64Counter

	// RouterHits counts intent-router classifications. Use with attribute:
	//   attribute.String("category", ...)
	RouterHits metric.Int64Counter

	// Corrections counts user corrections recorded for learning.
	Corrections metric.Int64Counter

	// SemanticErrors counts embedding backend failures.
	SemanticErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a matching pipeline that normally completes in milliseconds.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PipelineDuration, err = m.Float64Histogram("varna.pipeline.duration",
		metric.WithDescription("End-to-end latency of utterance resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SemanticDuration, err = m.Float64Histogram("varna.semantic.duration",
		metric.WithDescription("Latency of the embedding-based matching stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Matches, err = m.Int64Counter("varna.matches",
		metric.WithDescription("Total resolved utterances by primary method and response tier."),
	); err != nil {
		return nil, err
	}
	if met.RouterHits, err = m.Int64Counter("varna.router.hits",
		metric.WithDescription("Total intent router classifications by category."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("varna.corrections",
		metric.WithDescription("Total user corrections recorded for learning."),
	); err != nil {
		return nil, err
	}
	if met.SemanticErrors, err = m.Int64Counter("varna.semantic.errors",
		metric.WithDescription("Total embedding backend failures."),
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

// RecordMatch records a resolved utterance with the standard attribute set.
func (m *Metrics) RecordMatch(ctx context.Context, method, tier string) {
	m.Matches.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("tier", tier),
		),
	)
}

// RecordRouterHit records one intent-router classification.
func (m *Metrics) RecordRouterHit(ctx context.Context, category string) {
	m.RouterHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("category", category)),
	)
}
