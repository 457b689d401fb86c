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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/beacon/internal/history"
	"github.com/tombee/beacon/internal/operation"
	"github.com/tombee/beacon/internal/tracing"
)

// fakeInvoker returns canned results and records which variant ran.
type fakeInvoker struct {
	result operation.Result
	calls  []string
}

func (f *fakeInvoker) Invoke(context.Context) operation.Result {
	f.calls = append(f.calls, "manual")
	return f.result
}

func (f *fakeInvoker) InvokeSimple(context.Context) operation.Result {
	f.calls = append(f.calls, "simple")
	return f.result
}

func (f *fakeInvoker) InvokeUninstrumented(context.Context) operation.Result {
	f.calls = append(f.calls, "uninstrumented")
	return f.result
}

func (f *fakeInvoker) InvokeAuto(context.Context) operation.Result {
	f.calls = append(f.calls, "auto")
	return f.result
}

type fakeHistory struct {
	records []history.Record
	err     error
	limit   int
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]history.Record, error) {
	f.limit = limit
	return f.records, f.err
}

func successResult() operation.Result {
	return operation.Result{
		Message: operation.SuccessMessage,
		Buckets: []string{"alpha", "beta"},
	}
}

func doRequest(t *testing.T, router *Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoot(t *testing.T) {
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)

	rec := doRequest(t, router, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRoot_UnknownPath(t *testing.T) {
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)

	rec := doRequest(t, router, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterConfig{Version: "1.2.3"}, &fakeInvoker{}, nil)

	rec := doRequest(t, router, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "beacond", body["name"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestSDKCallRoutes_DispatchToVariants(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/aws-sdk-call-no-instrumentation", "uninstrumented"},
		{"/aws-sdk-call-with-instrumentation", "simple"},
		{"/aws-sdk-call-manual-instrumentation", "manual"},
		{"/aws-sdk-call-auto-instrumentation", "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			invoker := &fakeInvoker{result: successResult()}
			router := NewRouter(RouterConfig{}, invoker, nil)

			rec := doRequest(t, router, tt.path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tt.want}, invoker.calls)
		})
	}
}

func TestSDKCall_SuccessBody(t *testing.T) {
	invoker := &fakeInvoker{result: operation.Result{
		Message: operation.SuccessMessage,
		Buckets: []string{"alpha"},
		TraceID: "1-5759e988-bd862e3fe1be46a994272793_test7",
	}}
	router := NewRouter(RouterConfig{}, invoker, nil)

	rec := doRequest(t, router, "/aws-sdk-call-with-instrumentation")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "Listed S3 buckets successfully",
		"buckets": ["alpha"],
		"traceId": "1-5759e988-bd862e3fe1be46a994272793_test7"
	}`, rec.Body.String())
}

func TestSDKCall_OmitsEmptyTraceID(t *testing.T) {
	invoker := &fakeInvoker{result: successResult()}
	router := NewRouter(RouterConfig{}, invoker, nil)

	rec := doRequest(t, router, "/aws-sdk-call-manual-instrumentation")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "traceId")
}

func TestSDKCall_EmptyListingIsNotNull(t *testing.T) {
	invoker := &fakeInvoker{result: operation.Result{Message: operation.SuccessMessage}}
	router := NewRouter(RouterConfig{}, invoker, nil)

	rec := doRequest(t, router, "/aws-sdk-call-no-instrumentation")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"buckets":[]`)
}

func TestSDKCall_FailureMapsTo502(t *testing.T) {
	invoker := &fakeInvoker{result: operation.Result{
		Message: operation.FailureMessage,
		Error:   "access denied",
	}}
	router := NewRouter(RouterConfig{}, invoker, nil)

	rec := doRequest(t, router, "/aws-sdk-call-manual-instrumentation")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{
		"message": "Failed to list S3 buckets",
		"error": "access denied"
	}`, rec.Body.String())
}

func TestOperations_Disabled(t *testing.T) {
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)

	rec := doRequest(t, router, "/v1/operations")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperations_List(t *testing.T) {
	store := &fakeHistory{records: []history.Record{{
		ID:          1,
		TraceID:     "5759e988bd862e3fe1be46a994272793",
		XRayTraceID: "1-5759e988-bd862e3fe1be46a994272793",
		Operation:   "list_buckets",
		Status:      "ok",
		BucketCount: 2,
		DurationMs:  12,
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}}
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)
	router.SetHistory(store)

	rec := doRequest(t, router, "/v1/operations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, store.limit)

	var body struct {
		Operations []history.Record `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Operations, 1)
	assert.Equal(t, "list_buckets", body.Operations[0].Operation)
	assert.Equal(t, "1-5759e988-bd862e3fe1be46a994272793", body.Operations[0].XRayTraceID)
}

func TestOperations_LimitParam(t *testing.T) {
	store := &fakeHistory{}
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)
	router.SetHistory(store)

	rec := doRequest(t, router, "/v1/operations?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.limit)

	rec = doRequest(t, router, "/v1/operations?limit=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, store.limit)

	rec = doRequest(t, router, "/v1/operations?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperations_StoreError(t *testing.T) {
	store := &fakeHistory{err: errors.New("db closed")}
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)
	router.SetHistory(store)

	rec := doRequest(t, router, "/v1/operations")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCorrelationIDEchoed(t *testing.T) {
	router := NewRouter(RouterConfig{}, &fakeInvoker{result: successResult()}, nil)

	rec := doRequest(t, router, "/healthz")
	assert.NotEmpty(t, rec.Header().Get(tracing.HeaderCorrelationID))
}

func TestCorrelationIDReused(t *testing.T) {
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)

	id := tracing.NewCorrelationID().String()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(tracing.HeaderCorrelationID, id)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(tracing.HeaderCorrelationID))
}

func TestRateLimit(t *testing.T) {
	router := NewRouter(RouterConfig{RateLimit: 1, RateBurst: 1}, &fakeInvoker{}, nil)

	first := doRequest(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, router, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(RouterConfig{}, &fakeInvoker{}, nil)
	router.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := doRequest(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
