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
	"github.com/tombee/beacon/internal/tracing"
)

// WithAutoInstrumented sets the lister used by InvokeAuto. It is expected
// to carry SDK-level instrumentation (otelaws middleware), so the variant
// emits spans without this package opening any.
func WithAutoInstrumented(lister BucketLister) Option {
	return func(o *ListOperation) {
		o.autoLister = lister
	}
}

// InvokeAuto performs the call through the library-instrumented client: the
// SDK middleware and the surrounding server span do all the tracing, and
// this method only handles the result shape, metrics, logging, and history.
// Falls back to the plain lister when no instrumented one is wired.
func (o *ListOperation) InvokeAuto(ctx context.Context) Result {
	lister := o.autoLister
	if lister == nil {
		lister = o.lister
	}

	callStart := o.now()
	names, err := lister.ListBuckets(ctx)
	duration := o.now().Sub(callStart)

	traceID := tracing.TraceIDFromContext(ctx)

	if err != nil {
		o.logger.Error("Error listing S3 buckets",
			beaconlog.Error(err),
			slog.String(beaconlog.OperationKey, operationName),
			slog.String(beaconlog.TraceIDKey, traceID),
		)
		o.metrics.RecordSDKCall(ctx, operationName, "error", duration)
		o.record(ctx, traceID, "error", errorDetail(err), 0, duration)
		return Result{Message: FailureMessage, Error: errorDetail(err)}
	}

	o.metrics.RecordSDKCall(ctx, operationName, "", duration)
	o.record(ctx, traceID, "ok", "", len(names), duration)

	o.logger.Info("listed S3 buckets",
		slog.String(beaconlog.OperationKey, operationName),
		slog.Int(beaconlog.BucketCountKey, len(names)),
		slog.String(beaconlog.TraceIDKey, traceID),
	)

	return Result{Message: SuccessMessage, Buckets: names}
}
