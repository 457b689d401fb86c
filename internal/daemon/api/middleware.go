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

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/beacon/internal/daemon/httputil"
	beaconlog "github.com/tombee/beacon/internal/log"
	"github.com/tombee/beacon/internal/tracing"
)

// statusRecorder captures the response status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// correlationMiddleware ensures every request has a correlation ID: an
// incoming X-Correlation-ID or X-Request-ID header is reused when valid,
// otherwise a fresh one is generated. The ID is echoed on the response.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, found := tracing.ExtractFromRequest(req)
		if !found || !id.IsValid() {
			id = tracing.NewCorrelationID()
		}

		w.Header().Set(tracing.HeaderCorrelationID, id.String())
		next.ServeHTTP(w, req.WithContext(tracing.ToContext(req.Context(), id)))
	})
}

// loggingMiddleware logs one line per completed request and feeds the
// request metrics.
func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		if r.metrics != nil {
			r.metrics.RequestStarted()
			defer r.metrics.RequestFinished()
		}

		next.ServeHTTP(rec, req)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		if r.metrics != nil {
			r.metrics.RecordHTTPRequest(req.Context(), req.URL.Path, req.Method, rec.status)
		}

		logger := beaconlog.WithCorrelationID(r.logger, tracing.FromContext(req.Context()).String())
		logger.Info("request completed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64(beaconlog.DurationKey, time.Since(start).Milliseconds()),
		)
	})
}

// rateLimitMiddleware rejects requests over the configured rate with 429.
// A nil limiter disables it.
func (r *Router) rateLimitMiddleware(next http.Handler) http.Handler {
	if r.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.limiter.Allow() {
			httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}
