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
	"net/http"
	"strconv"

	"github.com/tombee/beacon/internal/daemon/httputil"
	"github.com/tombee/beacon/internal/history"
	beaconlog "github.com/tombee/beacon/internal/log"
	"github.com/tombee/beacon/internal/operation"
)

// invocationResponse is the JSON body for the SDK call endpoints.
type invocationResponse struct {
	Message string   `json:"message"`
	Buckets []string `json:"buckets"`
	TraceID string   `json:"traceId,omitempty"`
}

// invocationError is the JSON body for failed SDK calls.
type invocationError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// writeResult maps an invocation result onto an HTTP response: 200 with the
// listing on success, 502 with the error detail when the upstream call
// failed.
func writeResult(w http.ResponseWriter, result operation.Result) {
	if result.Failed() {
		httputil.WriteJSON(w, http.StatusBadGateway, invocationError{
			Message: result.Message,
			Error:   result.Error,
		})
		return
	}

	buckets := result.Buckets
	if buckets == nil {
		buckets = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, invocationResponse{
		Message: result.Message,
		Buckets: buckets,
		TraceID: result.TraceID,
	})
}

// handleRoot handles GET / for basic connectivity.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httputil.WriteText(w, http.StatusOK, "OK")
}

// handleHealthz reports liveness and build information.
func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    "beacond",
		"version": r.config.Version,
	})
}

// handleNoInstrumentation performs the call with no manual spans.
func (r *Router) handleNoInstrumentation(w http.ResponseWriter, req *http.Request) {
	writeResult(w, r.ops.InvokeUninstrumented(req.Context()))
}

// handleWithInstrumentation performs the single-span variant; the response
// carries the X-Ray formatted trace ID.
func (r *Router) handleWithInstrumentation(w http.ResponseWriter, req *http.Request) {
	writeResult(w, r.ops.InvokeSimple(req.Context()))
}

// handleManualInstrumentation performs the fully instrumented four-phase
// variant.
func (r *Router) handleManualInstrumentation(w http.ResponseWriter, req *http.Request) {
	writeResult(w, r.ops.Invoke(req.Context()))
}

// handleAutoInstrumentation performs the call through the SDK-instrumented
// client; spans come from otelaws and the otelhttp wrapper, not from hand
// built instrumentation.
func (r *Router) handleAutoInstrumentation(w http.ResponseWriter, req *http.Request) {
	writeResult(w, r.ops.InvokeAuto(req.Context()))
}

// handleOperations lists recent recorded invocations, newest first.
// ?limit=N caps the page size (default 50, max 500).
func (r *Router) handleOperations(w http.ResponseWriter, req *http.Request) {
	if r.history == nil {
		httputil.WriteError(w, http.StatusNotFound, "operation history is not enabled")
		return
	}

	limit := 50
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	records, err := r.history.List(req.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list operation history", beaconlog.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list operations")
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"operations": records,
	})
}
