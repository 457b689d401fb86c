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

// Package api provides the HTTP API for beacond.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/tombee/beacon/internal/history"
	"github.com/tombee/beacon/internal/operation"
	"github.com/tombee/beacon/internal/tracing"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version   string
	Commit    string
	BuildDate string

	// RateLimit caps sustained requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Invoker runs the instrumented bucket listing in its three variants.
// *operation.ListOperation satisfies it.
type Invoker interface {
	Invoke(ctx context.Context) operation.Result
	InvokeSimple(ctx context.Context) operation.Result
	InvokeUninstrumented(ctx context.Context) operation.Result
	InvokeAuto(ctx context.Context) operation.Result
}

// HistoryLister reads back recorded invocations. *history.Store satisfies it.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// Router wraps an http.ServeMux with the SDK call endpoints and the
// middleware chain around them.
type Router struct {
	mux     *http.ServeMux
	config  RouterConfig
	ops     Invoker
	history HistoryLister
	metrics *tracing.MetricsCollector
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRouter creates a router serving the SDK call endpoints.
func NewRouter(cfg RouterConfig, ops Invoker, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		mux:    http.NewServeMux(),
		config: cfg,
		ops:    ops,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst == 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	r.mux.HandleFunc("GET /", r.handleRoot)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /aws-sdk-call-no-instrumentation", r.handleNoInstrumentation)
	r.mux.HandleFunc("GET /aws-sdk-call-with-instrumentation", r.handleWithInstrumentation)
	r.mux.HandleFunc("GET /aws-sdk-call-manual-instrumentation", r.handleManualInstrumentation)
	// The auto route gets its server span from library middleware, matching
	// the SDK-level instrumentation on its client.
	r.mux.Handle("GET /aws-sdk-call-auto-instrumentation",
		otelhttp.NewHandler(http.HandlerFunc(r.handleAutoInstrumentation), "aws-sdk-call-auto-instrumentation"))
	r.mux.HandleFunc("GET /v1/operations", r.handleOperations)

	return r
}

// SetMetricsCollector enables per-request metrics.
func (r *Router) SetMetricsCollector(metrics *tracing.MetricsCollector) {
	r.metrics = metrics
}

// SetMetricsHandler registers the Prometheus scrape endpoint.
func (r *Router) SetMetricsHandler(handler http.Handler) {
	if handler != nil {
		r.mux.Handle("GET /metrics", handler)
	}
}

// SetHistory enables the /v1/operations listing.
func (r *Router) SetHistory(h HistoryLister) {
	r.history = h
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Chain built from innermost to outermost: mux, request logging,
	// correlation, rate limiting. The limiter sits outside so rejected
	// requests never touch the handlers.
	var handler http.Handler = r.mux

	handler = r.loggingMiddleware(handler)
	handler = correlationMiddleware(handler)
	handler = r.rateLimitMiddleware(handler)

	handler.ServeHTTP(w, req)
}

// Mux returns the underlying ServeMux for registering additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}
