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

// Package operation wraps the S3 bucket listing call in manually
// constructed trace spans, metrics, and logs.
//
// Invoke builds a four-phase span tree per call: a root operation span with
// child spans for client setup, the API call itself, and response
// processing. Phases run strictly sequentially; every span opened by an
// invocation is closed before Invoke returns, on success and failure alike.
package operation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tombee/beacon/internal/history"
	beaconlog "github.com/tombee/beacon/internal/log"
	"github.com/tombee/beacon/internal/tracing"
	"github.com/tombee/beacon/internal/xray"
	"github.com/tombee/beacon/pkg/observability"
)

// Span names for the manual instrumentation tree.
const (
	rootSpanName        = "aws_s3_list_operation"
	clientSetupSpanName = "s3_client_setup"
	apiCallSpanName     = "s3_list_buckets_api_call"
	processingSpanName  = "response_processing"

	simpleSpanName = "list_s3_buckets"
)

// operationName labels metrics and logs for this operation.
const operationName = "list_buckets"

// BucketLister is the outbound call being instrumented. Implementations
// must return the listed bucket names or a single error; no retries happen
// at this layer.
type BucketLister interface {
	ListBuckets(ctx context.Context) ([]string, error)
}

// HistoryRecorder persists completed invocations for later inspection.
// *history.Store satisfies it.
type HistoryRecorder interface {
	Insert(ctx context.Context, rec *history.Record) error
}

// ListOperation orchestrates one instrumented bucket listing per Invoke
// call. All capabilities are injected; the type holds no mutable state and
// is safe for concurrent use.
type ListOperation struct {
	tracer         observability.Tracer
	metrics        *tracing.MetricsCollector
	logger         *slog.Logger
	lister         BucketLister
	autoLister     BucketLister
	recorder       HistoryRecorder
	instanceSuffix string
	now            func() time.Time
}

// Option configures a ListOperation.
type Option func(*ListOperation)

// WithInstanceID appends "_{id}" to trace IDs surfaced in responses, so
// multiple service instances sharing a collector can be told apart.
func WithInstanceID(id string) Option {
	return func(o *ListOperation) {
		if id != "" {
			o.instanceSuffix = "_" + id
		}
	}
}

// WithHistory records each completed invocation in the given store.
func WithHistory(recorder HistoryRecorder) Option {
	return func(o *ListOperation) {
		o.recorder = recorder
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(o *ListOperation) {
		o.now = now
	}
}

// NewListOperation creates a ListOperation with the given capabilities.
func NewListOperation(tracer observability.Tracer, metrics *tracing.MetricsCollector, logger *slog.Logger, lister BucketLister, opts ...Option) *ListOperation {
	if logger == nil {
		logger = slog.Default()
	}
	op := &ListOperation{
		tracer:  tracer,
		metrics: metrics,
		logger:  beaconlog.WithComponent(logger, "operation"),
		lister:  lister,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// Invoke performs one fully instrumented bucket listing. It never returns
// an error: failures are recorded on the span tree, logged, counted, and
// folded into the failure Result shape.
func (o *ListOperation) Invoke(ctx context.Context) Result {
	start := o.now()

	ctx, root := o.tracer.Start(ctx, rootSpanName,
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{
			"operation.type": "aws_sdk_call",
			"language":       "go-manual-instrumentation",
			"aws.service":    "s3",
			"aws.operation":  operationName,
			"component":      "aws-sdk-go-v2",
		}),
	)
	defer root.End()

	root.AddEvent("Operation initialized", map[string]any{
		"timestamp": start.Format(time.RFC3339Nano),
	})

	o.clientSetupPhase(ctx)

	names, apiDuration, err := o.apiCallPhase(ctx)
	if err != nil {
		return o.fail(ctx, root, err, o.now().Sub(start))
	}

	processed := o.processingPhase(ctx, names)

	end := o.now()
	total := end.Sub(start)
	totalMs := float64(total) / float64(time.Millisecond)

	root.SetAttributes(map[string]any{
		"operation.total_duration_ms": totalMs,
		"operation.success":           true,
	})
	root.AddEvent("Operation completed successfully", map[string]any{
		"total_duration_ms": totalMs,
		"buckets_found":     len(processed),
		"end_timestamp":     end.Format(time.RFC3339Nano),
	})
	root.SetStatus(observability.StatusCodeOK, "")

	o.metrics.RecordSDKCall(ctx, operationName, "", apiDuration)
	o.record(ctx, root.SpanContext().TraceID, "ok", "", len(processed), total)

	o.logger.Info("listed S3 buckets",
		slog.String(beaconlog.OperationKey, operationName),
		slog.Int(beaconlog.BucketCountKey, len(processed)),
		slog.Int64(beaconlog.DurationKey, total.Milliseconds()),
		slog.String(beaconlog.TraceIDKey, root.SpanContext().TraceID),
	)

	return Result{Message: SuccessMessage, Buckets: processed}
}

// clientSetupPhase records the client initialization span. The SDK client
// itself is constructed once at startup and injected, so this phase only
// brackets its readiness.
func (o *ListOperation) clientSetupPhase(ctx context.Context) {
	_, span := o.tracer.Start(ctx, clientSetupSpanName,
		observability.WithAttributes(map[string]any{
			"aws.service":     "s3",
			"operation.phase": "client_initialization",
		}),
	)
	defer span.End()

	span.AddEvent("Starting S3 client initialization", nil)
	span.AddEvent("S3 client initialized successfully", nil)
}

// apiCallPhase performs the outbound call, measuring its wall-clock
// duration. The child span is closed on every path.
func (o *ListOperation) apiCallPhase(ctx context.Context) (names []string, duration time.Duration, err error) {
	ctx, span := o.tracer.Start(ctx, apiCallSpanName,
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{
			"aws.service":     "s3",
			"aws.operation":   operationName,
			"operation.phase": "api_execution",
			"http.method":     "GET",
		}),
	)
	defer span.End()

	span.AddEvent("Starting API call to list S3 buckets", nil)

	callStart := o.now()
	names, err = o.lister.ListBuckets(ctx)
	duration = o.now().Sub(callStart)

	if err != nil {
		span.RecordError(err)
		return nil, duration, err
	}

	durationMs := float64(duration) / float64(time.Millisecond)
	span.SetAttributes(map[string]any{
		"aws.s3.bucket_count":   len(names),
		"operation.duration_ms": durationMs,
	})
	span.AddEvent("API call completed successfully", map[string]any{
		"bucket_count": len(names),
		"duration_ms":  durationMs,
	})

	return names, duration, nil
}

// processingPhase shapes the API response into the list of bucket names
// returned to callers.
func (o *ListOperation) processingPhase(ctx context.Context, names []string) []string {
	_, span := o.tracer.Start(ctx, processingSpanName,
		observability.WithAttributes(map[string]any{
			"operation.phase": "data_processing",
			"data.type":       "s3_bucket_list",
		}),
	)
	defer span.End()

	span.AddEvent("Starting response data processing", nil)

	processed := make([]string, len(names))
	copy(processed, names)

	span.SetAttributes(map[string]any{
		"processed.bucket_count": len(processed),
	})
	span.AddEvent("Response processing completed", map[string]any{
		"processed_buckets": len(processed),
	})

	return processed
}

// fail records the error on the root span, logs it once, counts the failed
// outcome, and returns the failure result shape.
func (o *ListOperation) fail(ctx context.Context, root observability.SpanHandle, err error, elapsed time.Duration) Result {
	root.RecordError(err)
	root.SetStatus(observability.StatusCodeError, errorDetail(err))

	o.logger.Error("Error listing S3 buckets",
		beaconlog.Error(err),
		slog.String(beaconlog.OperationKey, operationName),
		slog.String(beaconlog.TraceIDKey, root.SpanContext().TraceID),
	)

	o.metrics.RecordSDKCall(ctx, operationName, "error", elapsed)
	o.record(ctx, root.SpanContext().TraceID, "error", errorDetail(err), 0, elapsed)

	return Result{Message: FailureMessage, Error: errorDetail(err)}
}

// record persists the invocation outcome when a history store is wired in.
// Storage problems are logged, never surfaced to callers.
func (o *ListOperation) record(ctx context.Context, traceID, status, detail string, bucketCount int, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}

	rec := &history.Record{
		TraceID:     traceID,
		Operation:   operationName,
		Status:      status,
		Detail:      detail,
		BucketCount: bucketCount,
		DurationMs:  elapsed.Milliseconds(),
		StartedAt:   o.now().Add(-elapsed),
	}
	// Untraced invocations leave both trace fields empty; converting ""
	// would left-pad to an all-zero X-Ray ID.
	if traceID != "" {
		if xrayID, err := xray.ConvertHex(traceID); err == nil {
			rec.XRayTraceID = xrayID
		}
	}

	// Cancellation already failed the call; the record should survive it.
	if err := o.recorder.Insert(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("failed to record invocation history", beaconlog.Error(err))
	}
}
