// Package observe provides application-wide observability primitives for
// LiveCaptions: OpenTelemetry metrics, tracing, and structured logging
// helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all LiveCaptions metrics.
const meterName = "github.com/tmkbharathi/LiveCaptions"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// STTDuration tracks speech-to-text inference latency.
	STTDuration metric.Float64Histogram

	// Inferences counts STT calls. Use with attribute:
	//   attribute.String("status", "ok"|"empty"|"error")
	Inferences metric.Int64Counter

	// DroppedUpdates counts recognition results discarded by the segmenter
	// filters. Use with attribute:
	//   attribute.String("reason", "pure_tag"|"too_short"|"hallucination")
	DroppedUpdates metric.Int64Counter

	// Commits counts finalised caption segments. Use with attribute:
	//   attribute.String("trigger", "silence"|"length"|"hallucination_drop")
	Commits metric.Int64Counter

	// FramesCaptured counts audio frames carved from the capture stream.
	FramesCaptured metric.Int64Counter

	// WindowBytes tracks the current session window size in bytes.
	WindowBytes metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// local whisper inference.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("livecaptions.stt.duration",
		metric.WithDescription("Latency of speech-to-text inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Inferences, err = m.Int64Counter("livecaptions.stt.inferences",
		metric.WithDescription("Total STT inference attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.DroppedUpdates, err = m.Int64Counter("livecaptions.segmenter.dropped",
		metric.WithDescription("Recognition results discarded by segmenter filters, by reason."),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("livecaptions.segmenter.commits",
		metric.WithDescription("Finalised caption segments by trigger."),
	); err != nil {
		return nil, err
	}
	if met.FramesCaptured, err = m.Int64Counter("livecaptions.audio.frames",
		metric.WithDescription("Audio frames carved from the capture stream."),
	); err != nil {
		return nil, err
	}
	if met.WindowBytes, err = m.Int64UpDownCounter("livecaptions.audio.window_bytes",
		metric.WithDescription("Current session window size in bytes."),
		metric.WithUnit("By"),
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

// RecordInference records one STT call outcome together with its latency in
// seconds.
func (m *Metrics) RecordInference(ctx context.Context, status string, seconds float64) {
	m.Inferences.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.STTDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordDrop records one filtered-out recognition result.
func (m *Metrics) RecordDrop(ctx context.Context, reason string) {
	m.DroppedUpdates.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordCommit records one finalised caption segment.
func (m *Metrics) RecordCommit(ctx context.Context, trigger string) {
	m.Commits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("trigger", trigger)),
	)
}

// RecordFrames records n audio frames carved from the capture stream.
func (m *Metrics) RecordFrames(ctx context.Context, n int) {
	m.FramesCaptured.Add(ctx, int64(n))
}

// AddWindowBytes adjusts the session-window byte gauge by delta (negative on
// eviction or clear).
func (m *Metrics) AddWindowBytes(ctx context.Context, delta int) {
	m.WindowBytes.Add(ctx, int64(delta))
}
