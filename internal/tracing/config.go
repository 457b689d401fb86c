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

package tracing

import (
	"time"
)

// ExporterKind selects the span export transport.
type ExporterKind string

const (
	// ExporterOTLPGRPC exports spans over OTLP gRPC.
	ExporterOTLPGRPC ExporterKind = "grpc"
	// ExporterOTLPHTTP exports spans over OTLP HTTP.
	ExporterOTLPHTTP ExporterKind = "http"
	// ExporterConsole prints spans to stdout for development.
	ExporterConsole ExporterKind = "console"
)

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether span export is active. Spans are still
	// created when disabled so trace IDs remain available to handlers.
	Enabled bool

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// SampleRate is the fraction of traces to record (0.0 - 1.0).
	// 1.0 samples everything.
	SampleRate float64

	// Exporter configures the export destination.
	Exporter ExporterConfig

	// BatchInterval is how often the batch processor flushes spans
	// (default: 5s).
	BatchInterval time.Duration
}

// ExporterConfig configures the OTLP export destination.
type ExporterConfig struct {
	// Kind selects the transport: grpc, http, or console.
	Kind ExporterKind

	// Endpoint is the collector endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS (for development only).
	Insecure bool

	// CAFile is an optional PEM bundle trusted for the collector's
	// certificate. Ignored when Insecure is set.
	CAFile string

	// CertFile and KeyFile enable mutual TLS toward the collector.
	CertFile string
	KeyFile  string

	// Headers contains custom headers to send with each export request.
	Headers map[string]string
}

// DefaultConfig returns the configuration used when nothing is specified:
// everything sampled, OTLP gRPC to a local collector.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		ServiceName:    "beacon",
		ServiceVersion: "dev",
		SampleRate:     1.0,
		Exporter: ExporterConfig{
			Kind:     ExporterOTLPGRPC,
			Endpoint: "localhost:4317",
			Insecure: true,
		},
		BatchInterval: 5 * time.Second,
	}
}
