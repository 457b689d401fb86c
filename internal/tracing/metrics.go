package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records Prometheus-compatible metrics for SDK calls and
// the HTTP surface that triggers them.
type MetricsCollector struct {
	meter metric.Meter

	// Counters
	sdkCallsTotal     metric.Int64Counter
	httpRequestsTotal metric.Int64Counter

	// Histograms
	sdkCallDuration metric.Float64Histogram

	// Gauge state
	activeRequests   int64
	activeRequestsMu sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("beacon")

	mc := &MetricsCollector{meter: meter}

	var err error

	mc.sdkCallsTotal, err = meter.Int64Counter(
		"beacon_sdk_calls_total",
		metric.WithDescription("Total number of AWS SDK calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	mc.httpRequestsTotal, err = meter.Int64Counter(
		"beacon_http_requests_total",
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	mc.sdkCallDuration, err = meter.Float64Histogram(
		"beacon_sdk_call_duration_seconds",
		metric.WithDescription("AWS SDK call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"beacon_http_requests_active",
		metric.WithDescription("Number of HTTP requests currently in flight"),
		metric.WithUnit("{request}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.activeRequestsMu.RLock()
			active := mc.activeRequests
			mc.activeRequestsMu.RUnlock()
			observer.Observe(active)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordSDKCall records one completed SDK call. The status attribute is only
// attached when non-empty, so successful calls carry just the operation
// label while failures carry {operation, status}.
// A nil collector is a no-op, so callers wired without metrics never panic.
func (mc *MetricsCollector) RecordSDKCall(ctx context.Context, operation, status string, duration time.Duration) {
	if mc == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
	}
	if status != "" {
		attrs = append(attrs, attribute.String("status", status))
	}

	mc.sdkCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mc.sdkCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordHTTPRequest records one served HTTP request.
func (mc *MetricsCollector) RecordHTTPRequest(ctx context.Context, route, method string, statusCode int) {
	if mc == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int("status_code", statusCode),
	}

	mc.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RequestStarted increments the in-flight request gauge.
func (mc *MetricsCollector) RequestStarted() {
	if mc == nil {
		return
	}
	mc.activeRequestsMu.Lock()
	mc.activeRequests++
	mc.activeRequestsMu.Unlock()
}

// RequestFinished decrements the in-flight request gauge.
func (mc *MetricsCollector) RequestFinished() {
	if mc == nil {
		return
	}
	mc.activeRequestsMu.Lock()
	if mc.activeRequests > 0 {
		mc.activeRequests--
	}
	mc.activeRequestsMu.Unlock()
}
