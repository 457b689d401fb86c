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

// Package observability defines the tracing capabilities consumed by the
// instrumented operations. Implementations live in internal/tracing; the
// operation layer depends only on these interfaces so that tests can supply
// in-memory fakes and the telemetry backend can be swapped without touching
// business code.
package observability

import (
	"context"
)

// TracerProvider creates tracers and owns the export pipeline.
type TracerProvider interface {
	// Tracer returns a tracer for the given instrumentation scope.
	Tracer(name string) Tracer

	// Shutdown flushes any pending telemetry and releases resources.
	// Calling Shutdown multiple times is safe.
	Shutdown(ctx context.Context) error

	// ForceFlush exports all pending spans synchronously.
	ForceFlush(ctx context.Context) error
}

// Tracer creates spans within a specific instrumentation scope.
type Tracer interface {
	// Start begins a new span as a child of the context's current span.
	// If the context contains no span, this creates a root span. The
	// returned context carries the new span for child creation.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanHandle)
}

// SpanHandle is an in-flight span that can still be modified.
// Recording attributes and events is a local, non-blocking append; export
// happens asynchronously after End.
type SpanHandle interface {
	// End marks the span as complete and records it.
	// Calling End multiple times is safe (subsequent calls are no-ops).
	End()

	// SetStatus sets the span's final status.
	SetStatus(code StatusCode, message string)

	// SetAttributes adds key-value metadata to the span.
	// Later calls with the same key overwrite earlier values.
	SetAttributes(attrs map[string]any)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs map[string]any)

	// RecordError records an error on the span and marks its status as
	// StatusCodeError with the error's message.
	RecordError(err error)

	// SpanContext returns the span's trace context.
	SpanContext() TraceContext
}

// SpanKind categorizes the type of work represented by a span.
type SpanKind string

const (
	// SpanKindInternal represents work happening within the application.
	SpanKindInternal SpanKind = "internal"

	// SpanKindClient represents an outbound synchronous call.
	SpanKindClient SpanKind = "client"

	// SpanKindServer represents handling an inbound synchronous request.
	SpanKindServer SpanKind = "server"
)

// StatusCode represents the outcome of a span.
type StatusCode int

const (
	// StatusCodeUnset indicates no status was explicitly set.
	StatusCodeUnset StatusCode = 0

	// StatusCodeOK indicates successful completion.
	StatusCodeOK StatusCode = 1

	// StatusCodeError indicates an error occurred.
	StatusCodeError StatusCode = 2
)

// TraceContext identifies a span within its trace.
type TraceContext struct {
	// TraceID is the 128-bit trace identifier as 32 lowercase hex digits.
	TraceID string

	// SpanID is the 64-bit span identifier as 16 lowercase hex digits.
	SpanID string

	// Sampled reports whether the trace is being recorded for export.
	Sampled bool
}

// SpanOption configures span creation.
type SpanOption interface {
	applySpanOption(*SpanConfig)
}

// SpanConfig holds span creation options. It is exported so that tracer
// implementations in other packages can apply options.
type SpanConfig struct {
	Kind       SpanKind
	Attributes map[string]any
}

// Apply runs every option against the config.
func (c *SpanConfig) Apply(opts ...SpanOption) {
	for _, opt := range opts {
		opt.applySpanOption(c)
	}
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return spanKindOption(kind)
}

type spanKindOption SpanKind

func (o spanKindOption) applySpanOption(c *SpanConfig) {
	c.Kind = SpanKind(o)
}

// WithAttributes sets initial span attributes.
func WithAttributes(attrs map[string]any) SpanOption {
	return spanAttributesOption(attrs)
}

type spanAttributesOption map[string]any

func (o spanAttributesOption) applySpanOption(c *SpanConfig) {
	if c.Attributes == nil {
		c.Attributes = make(map[string]any, len(o))
	}
	for k, v := range o {
		c.Attributes[k] = v
	}
}
