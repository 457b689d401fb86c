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

	beaconlog "github.com/tombee/beacon/internal/log"
	"github.com/tombee/beacon/internal/xray"
	"github.com/tombee/beacon/pkg/observability"
)

// InvokeSimple performs the single-span instrumented variant: one span
// around the whole call, and the response carries the X-Ray formatted trace
// ID (plus the instance suffix, if configured) so callers can look up the
// trace in the tracing backend.
func (o *ListOperation) InvokeSimple(ctx context.Context) Result {
	ctx, span := o.tracer.Start(ctx, simpleSpanName,
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{
			"language":      "go-manual-instrumentation",
			"aws.service":   "s3",
			"aws.operation": operationName,
		}),
	)
	defer span.End()

	span.AddEvent("Starting to list S3 buckets", nil)

	callStart := o.now()
	names, err := o.lister.ListBuckets(ctx)
	duration := o.now().Sub(callStart)

	if err != nil {
		return o.fail(ctx, span, err, duration)
	}

	span.SetStatus(observability.StatusCodeOK, "")
	o.metrics.RecordSDKCall(ctx, operationName, "", duration)
	o.record(ctx, span.SpanContext().TraceID, "ok", "", len(names), duration)

	traceID, convErr := xray.ConvertHex(span.SpanContext().TraceID)
	if convErr != nil {
		// Only reachable with a tracer that hands out malformed IDs.
		o.logger.Warn("could not convert trace ID", beaconlog.Error(convErr))
	}

	o.logger.Info("listed S3 buckets",
		slog.String(beaconlog.OperationKey, operationName),
		slog.Int(beaconlog.BucketCountKey, len(names)),
		slog.String(beaconlog.TraceIDKey, traceID),
	)

	return Result{
		Message: SuccessMessage,
		Buckets: names,
		TraceID: traceID + o.instanceSuffix,
	}
}

// InvokeUninstrumented performs the call with no manual spans at all,
// relying only on whatever ambient instrumentation exists. Unlike the
// others it still returns the listing: silently dropping the response is a
// bug, not a contract.
func (o *ListOperation) InvokeUninstrumented(ctx context.Context) Result {
	callStart := o.now()
	names, err := o.lister.ListBuckets(ctx)
	duration := o.now().Sub(callStart)

	if err != nil {
		o.logger.Error("Error listing S3 buckets",
			beaconlog.Error(err),
			slog.String(beaconlog.OperationKey, operationName),
		)
		o.record(ctx, "", "error", errorDetail(err), 0, duration)
		return Result{Message: FailureMessage, Error: errorDetail(err)}
	}

	o.record(ctx, "", "ok", "", len(names), duration)
	return Result{Message: SuccessMessage, Buckets: names}
}
