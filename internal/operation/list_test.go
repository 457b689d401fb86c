// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/beacon/internal/s3client"
	"github.com/tombee/beacon/internal/tracing"
	"github.com/tombee/beacon/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// fakeLister returns canned buckets or a canned error.
type fakeLister struct {
	buckets []string
	err     error
	calls   int
}

func (f *fakeLister) ListBuckets(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.buckets, nil
}

// recordedEvent is one AddEvent call on a recorded span.
type recordedEvent struct {
	name  string
	attrs map[string]any
}

// recordedSpan implements observability.SpanHandle and remembers everything
// done to it.
type recordedSpan struct {
	name      string
	parent    string
	endCount  int
	status    observability.StatusCode
	statusMsg string
	attrs     map[string]any
	events    []recordedEvent
	errs      []error
}

func (s *recordedSpan) End() { s.endCount++ }

func (s *recordedSpan) SetStatus(code observability.StatusCode, message string) {
	s.status, s.statusMsg = code, message
}

func (s *recordedSpan) SetAttributes(attrs map[string]any) {
	for k, v := range attrs {
		s.attrs[k] = v
	}
}

func (s *recordedSpan) AddEvent(name string, attrs map[string]any) {
	s.events = append(s.events, recordedEvent{name: name, attrs: attrs})
}

func (s *recordedSpan) RecordError(err error) {
	s.errs = append(s.errs, err)
	s.status, s.statusMsg = observability.StatusCodeError, err.Error()
}

func (s *recordedSpan) SpanContext() observability.TraceContext {
	return observability.TraceContext{
		TraceID: "5759e988bd862e3fe1be46a994272793",
		SpanID:  "53995c3f42cd8ad8",
		Sampled: true,
	}
}

type spanCtxKey struct{}

// recordingTracer implements observability.Tracer, tracking parentage
// through the context.
type recordingTracer struct {
	spans []*recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...observability.SpanOption) (context.Context, observability.SpanHandle) {
	cfg := &observability.SpanConfig{}
	cfg.Apply(opts...)

	span := &recordedSpan{name: name, attrs: map[string]any{}}
	for k, v := range cfg.Attributes {
		span.attrs[k] = v
	}
	if parent, ok := ctx.Value(spanCtxKey{}).(*recordedSpan); ok {
		span.parent = parent.name
	}
	t.spans = append(t.spans, span)
	return context.WithValue(ctx, spanCtxKey{}, span), span
}

func (t *recordingTracer) byName(name string) *recordedSpan {
	for _, s := range t.spans {
		if s.name == name {
			return s
		}
	}
	return nil
}

func newTestMetrics(t *testing.T) (*tracing.MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	mc, err := tracing.NewMetricsCollector(mp)
	require.NoError(t, err)
	return mc, reader
}

func sdkCallCount(t *testing.T, reader *sdkmetric.ManualReader, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	want := attribute.NewSet(attrs...)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "beacon_sdk_calls_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equivalent() == want.Equivalent() {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func newTestOperation(t *testing.T, lister BucketLister, opts ...Option) (*ListOperation, *recordingTracer, *sdkmetric.ManualReader) {
	t.Helper()

	tracer := &recordingTracer{}
	metrics, reader := newTestMetrics(t)
	op := NewListOperation(tracer, metrics, slog.Default(), lister, opts...)
	return op, tracer, reader
}

func TestInvoke_Success(t *testing.T) {
	lister := &fakeLister{buckets: []string{"alpha", "bravo", "charlie"}}
	op, _, reader := newTestOperation(t, lister)

	result := op.Invoke(context.Background())

	require.False(t, result.Failed())
	assert.Equal(t, SuccessMessage, result.Message)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, result.Buckets)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, lister.calls)

	// Counter: exactly one success increment, no error-labeled increment.
	assert.Equal(t, int64(1), sdkCallCount(t, reader,
		attribute.String("operation", "list_buckets")))
	assert.Zero(t, sdkCallCount(t, reader,
		attribute.String("operation", "list_buckets"),
		attribute.String("status", "error")))
}

func TestInvoke_SuccessSpanTree(t *testing.T) {
	lister := &fakeLister{buckets: []string{"a", "b"}}
	op, tracer, _ := newTestOperation(t, lister)

	op.Invoke(context.Background())

	require.Len(t, tracer.spans, 4)

	root := tracer.byName("aws_s3_list_operation")
	require.NotNil(t, root)
	assert.Empty(t, root.parent)
	assert.Equal(t, "aws_sdk_call", root.attrs["operation.type"])
	assert.Equal(t, "s3", root.attrs["aws.service"])
	assert.Equal(t, "list_buckets", root.attrs["aws.operation"])
	assert.Equal(t, true, root.attrs["operation.success"])
	assert.Contains(t, root.attrs, "operation.total_duration_ms")
	assert.Equal(t, observability.StatusCodeOK, root.status)

	require.NotEmpty(t, root.events)
	assert.Equal(t, "Operation initialized", root.events[0].name)
	last := root.events[len(root.events)-1]
	assert.Equal(t, "Operation completed successfully", last.name)
	assert.Equal(t, 2, last.attrs["buckets_found"])

	for _, child := range []string{"s3_client_setup", "s3_list_buckets_api_call", "response_processing"} {
		span := tracer.byName(child)
		require.NotNil(t, span, "missing span %s", child)
		assert.Equal(t, "aws_s3_list_operation", span.parent)
	}

	api := tracer.byName("s3_list_buckets_api_call")
	assert.Equal(t, "GET", api.attrs["http.method"])
	assert.Equal(t, 2, api.attrs["aws.s3.bucket_count"])
	assert.Contains(t, api.attrs, "operation.duration_ms")

	processing := tracer.byName("response_processing")
	assert.Equal(t, 2, processing.attrs["processed.bucket_count"])

	// Every opened span is closed exactly once.
	for _, span := range tracer.spans {
		assert.Equal(t, 1, span.endCount, "span %s", span.name)
	}
}

func TestInvoke_Failure(t *testing.T) {
	lister := &fakeLister{err: &s3client.TransportError{
		Type:    s3client.ErrorTypeAuth,
		Message: "access denied",
	}}
	op, tracer, reader := newTestOperation(t, lister)

	result := op.Invoke(context.Background())

	require.True(t, result.Failed())
	assert.Equal(t, FailureMessage, result.Message)
	assert.Equal(t, "access denied", result.Error)
	assert.Empty(t, result.Buckets)

	// Exactly one error-labeled increment, none without the status label.
	assert.Equal(t, int64(1), sdkCallCount(t, reader,
		attribute.String("operation", "list_buckets"),
		attribute.String("status", "error")))
	assert.Zero(t, sdkCallCount(t, reader,
		attribute.String("operation", "list_buckets")))

	root := tracer.byName("aws_s3_list_operation")
	require.NotNil(t, root)
	assert.Equal(t, observability.StatusCodeError, root.status)
	assert.Equal(t, "access denied", root.statusMsg)
	require.Len(t, root.errs, 1)

	// The processing phase never runs on failure.
	assert.Nil(t, tracer.byName("response_processing"))

	// All spans that were opened (root, setup, api call) are closed.
	require.Len(t, tracer.spans, 3)
	for _, span := range tracer.spans {
		assert.Equal(t, 1, span.endCount, "span %s", span.name)
	}
}

func TestInvoke_EmptyListing(t *testing.T) {
	lister := &fakeLister{buckets: []string{}}
	op, _, _ := newTestOperation(t, lister)

	result := op.Invoke(context.Background())

	require.False(t, result.Failed())
	assert.Empty(t, result.Buckets)
	assert.Equal(t, SuccessMessage, result.Message)
}

func TestInvoke_DurationUsesClock(t *testing.T) {
	lister := &fakeLister{buckets: []string{"a"}}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	clock := func() time.Time {
		step++
		return base.Add(time.Duration(step) * 10 * time.Millisecond)
	}

	op, tracer, _ := newTestOperation(t, lister, WithClock(clock))
	op.Invoke(context.Background())

	root := tracer.byName("aws_s3_list_operation")
	total, ok := root.attrs["operation.total_duration_ms"].(float64)
	require.True(t, ok)
	assert.Greater(t, total, 0.0)
}

func TestInvokeSimple_Success(t *testing.T) {
	lister := &fakeLister{buckets: []string{"alpha"}}
	op, tracer, reader := newTestOperation(t, lister, WithInstanceID("test7"))

	result := op.InvokeSimple(context.Background())

	require.False(t, result.Failed())
	assert.Equal(t, []string{"alpha"}, result.Buckets)
	assert.Equal(t, "1-5759e988-bd862e3fe1be46a994272793_test7", result.TraceID)

	span := tracer.byName("list_s3_buckets")
	require.NotNil(t, span)
	assert.Equal(t, 1, span.endCount)
	assert.Equal(t, observability.StatusCodeOK, span.status)
	require.NotEmpty(t, span.events)
	assert.Equal(t, "Starting to list S3 buckets", span.events[0].name)

	assert.Equal(t, int64(1), sdkCallCount(t, reader,
		attribute.String("operation", "list_buckets")))
}

func TestInvokeSimple_NoInstanceID(t *testing.T) {
	lister := &fakeLister{buckets: nil}
	op, _, _ := newTestOperation(t, lister)

	result := op.InvokeSimple(context.Background())
	assert.Equal(t, "1-5759e988-bd862e3fe1be46a994272793", result.TraceID)
}

func TestInvokeSimple_Failure(t *testing.T) {
	lister := &fakeLister{err: &s3client.TransportError{
		Type:    s3client.ErrorTypeConnection,
		Message: "connection refused",
	}}
	op, tracer, reader := newTestOperation(t, lister)

	result := op.InvokeSimple(context.Background())

	require.True(t, result.Failed())
	assert.Equal(t, "connection refused", result.Error)
	assert.Empty(t, result.TraceID)

	span := tracer.byName("list_s3_buckets")
	require.NotNil(t, span)
	assert.Equal(t, 1, span.endCount)
	assert.Equal(t, observability.StatusCodeError, span.status)

	assert.Equal(t, int64(1), sdkCallCount(t, reader,
		attribute.String("operation", "list_buckets"),
		attribute.String("status", "error")))
}

func TestInvokeUninstrumented(t *testing.T) {
	lister := &fakeLister{buckets: []string{"a", "b"}}
	op, tracer, _ := newTestOperation(t, lister)

	result := op.InvokeUninstrumented(context.Background())

	require.False(t, result.Failed())
	assert.Equal(t, []string{"a", "b"}, result.Buckets)
	assert.Empty(t, tracer.spans, "no manual spans expected")
}

func TestInvokeUninstrumented_Failure(t *testing.T) {
	lister := &fakeLister{err: &s3client.TransportError{
		Type:    s3client.ErrorTypeAuth,
		Message: "access denied",
	}}
	op, _, _ := newTestOperation(t, lister)

	result := op.InvokeUninstrumented(context.Background())
	require.True(t, result.Failed())
	assert.Equal(t, "access denied", result.Error)
}

func TestInvoke_NilMetricsDoesNotPanic(t *testing.T) {
	lister := &fakeLister{buckets: []string{"alpha"}}
	op := NewListOperation(&recordingTracer{}, nil, slog.Default(), lister)

	assert.NotPanics(t, func() {
		result := op.Invoke(context.Background())
		assert.False(t, result.Failed())
	})
}
