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
	"errors"

	"github.com/tombee/beacon/internal/s3client"
)

// Messages returned to callers.
const (
	// SuccessMessage accompanies a successful bucket listing.
	SuccessMessage = "Listed S3 buckets successfully"
	// FailureMessage accompanies a failed bucket listing.
	FailureMessage = "Failed to list S3 buckets"
)

// Result is the outcome of one invocation. It is always one of two shapes:
// success carries Message and Buckets; failure carries Message and Error.
// Invocations never propagate errors past this type.
type Result struct {
	// Message is the human-readable outcome summary.
	Message string

	// Buckets holds the listed bucket names on success.
	Buckets []string

	// Error holds the failure detail; empty on success.
	Error string

	// TraceID is the X-Ray formatted trace identifier, populated by the
	// single-span variant for response correlation.
	TraceID string
}

// Failed reports whether the invocation ended in the failure shape.
func (r Result) Failed() bool {
	return r.Error != ""
}

// errorDetail extracts the user-facing message from a transport error,
// falling back to the error string for anything else.
func errorDetail(err error) string {
	var te *s3client.TransportError
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
