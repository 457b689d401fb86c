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

// Package xray converts OpenTelemetry trace identifiers into the trace ID
// format used by AWS X-Ray.
//
// X-Ray identifies a trace as "1-xxxxxxxx-yyyyyyyyyyyyyyyyyyyyyyyy": a
// one-byte version, the high 32 bits of the 128-bit trace ID as 8 hex
// digits, and the low 96 bits as 24 hex digits, joined by dashes. The full
// 32 hex digits always equal the zero-padded trace ID, so the conversion is
// lossless.
package xray

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TraceIDVersion is the fixed X-Ray trace ID version prefix.
	TraceIDVersion = "1"

	// TraceIDDelimiter separates the version, timestamp, and random parts.
	TraceIDDelimiter = "-"

	// TraceIDFirstPartLength is the number of hex digits in the first
	// segment after the version.
	TraceIDFirstPartLength = 8
)

// hexDigits in a full 128-bit trace ID.
const traceIDHexLength = 32

// Convert returns the X-Ray representation of a 128-bit trace ID.
//
// The result is always len(TraceIDVersion)+1+8+1+24 characters of lowercase
// hex and delimiters. Leading zeros are preserved: the zero trace ID maps to
// "1-00000000-000000000000000000000000".
func Convert(traceID [16]byte) string {
	full := hex.EncodeToString(traceID[:])
	return strings.Join([]string{
		TraceIDVersion,
		full[:TraceIDFirstPartLength],
		full[TraceIDFirstPartLength:],
	}, TraceIDDelimiter)
}

// ConvertHex converts a 32-digit hex trace ID string (the wire form used by
// W3C trace context and by SpanContext.TraceID().String()) into the X-Ray
// representation. Shorter inputs are zero-padded on the left.
func ConvertHex(traceIDHex string) (string, error) {
	if len(traceIDHex) > traceIDHexLength {
		return "", fmt.Errorf("xray: trace ID %q exceeds 128 bits", traceIDHex)
	}
	if len(traceIDHex) < traceIDHexLength {
		traceIDHex = strings.Repeat("0", traceIDHexLength-len(traceIDHex)) + traceIDHex
	}
	raw, err := hex.DecodeString(strings.ToLower(traceIDHex))
	if err != nil {
		return "", fmt.Errorf("xray: invalid trace ID %q: %w", traceIDHex, err)
	}
	var id [16]byte
	copy(id[:], raw)
	return Convert(id), nil
}

// Format wraps the converted trace ID in the JSON object literal returned to
// callers, e.g. {"traceId": "1-xxxxxxxx-yyyyyyyyyyyyyyyyyyyyyyyy"}.
func Format(traceID [16]byte) string {
	return fmt.Sprintf(`{"traceId": "%s"}`, Convert(traceID))
}
