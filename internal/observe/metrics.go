// Package observe provides application-wide observability primitives for
// Yomu: OpenTelemetry metrics, tracing setup, and HTTP middleware for the
// operational endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Yomu metrics.
const meterName = "github.com/yomu-app/yomu"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CaptureDuration tracks how long a single speech-capture attempt was
	// live, from start to finalization or error.
	CaptureDuration metric.Float64Histogram

	// CaptureErrors counts capture failures. Use with attribute:
	//   attribute.String("code", ...)
	CaptureErrors metric.Int64Counter

	// ScoreResults counts scored utterances. Use with attribute:
	//   attribute.String("feedback", ...)
	ScoreResults metric.Int64Counter

	// ItemsGraded counts graded practice items. Use with attributes:
	//   attribute.String("result", ...), attribute.String("mode", ...)
	ItemsGraded metric.Int64Counter

	// ItemsSkipped counts skipped practice items.
	ItemsSkipped metric.Int64Counter

	// PlaybackFetches counts reference-audio fetches. Use with attribute:
	//   attribute.String("status", ...)
	PlaybackFetches metric.Int64Counter

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks operational endpoint latency. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// captureBuckets defines histogram bucket boundaries (in seconds) sized for
// single-utterance capture attempts.
var captureBuckets = []float64{
	0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CaptureDuration, err = m.Float64Histogram("yomu.capture.duration",
		metric.WithDescription("Duration of a speech-capture attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(captureBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("yomu.capture.errors",
		metric.WithDescription("Total capture failures by error code."),
	); err != nil {
		return nil, err
	}
	if met.ScoreResults, err = m.Int64Counter("yomu.score.results",
		metric.WithDescription("Total scored utterances by feedback grade."),
	); err != nil {
		return nil, err
	}
	if met.ItemsGraded, err = m.Int64Counter("yomu.items.graded",
		metric.WithDescription("Total graded practice items by result and review mode."),
	); err != nil {
		return nil, err
	}
	if met.ItemsSkipped, err = m.Int64Counter("yomu.items.skipped",
		metric.WithDescription("Total skipped practice items."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackFetches, err = m.Int64Counter("yomu.playback.fetches",
		metric.WithDescription("Total reference-audio fetches by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("yomu.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("yomu.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordCaptureError records a capture failure with its error code.
func (m *Metrics) RecordCaptureError(ctx context.Context, code string) {
	m.CaptureErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", code)),
	)
}

// RecordScore records one scored utterance with its feedback grade.
func (m *Metrics) RecordScore(ctx context.Context, feedback string) {
	m.ScoreResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("feedback", feedback)),
	)
}

// RecordGrade records one graded item with its result and review mode.
func (m *Metrics) RecordGrade(ctx context.Context, result, mode string) {
	m.ItemsGraded.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("result", result),
			attribute.String("mode", mode),
		),
	)
}

// RecordPlaybackFetch records one reference-audio fetch outcome.
func (m *Metrics) RecordPlaybackFetch(ctx context.Context, status string) {
	m.PlaybackFetches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
