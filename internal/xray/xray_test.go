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

package xray

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_Zero(t *testing.T) {
	var id [16]byte
	assert.Equal(t, "1-00000000-000000000000000000000000", Convert(id))
}

func TestConvert_KnownValue(t *testing.T) {
	raw, err := hex.DecodeString("5759e988bd862e3fe1be46a994272793")
	require.NoError(t, err)

	var id [16]byte
	copy(id[:], raw)

	assert.Equal(t, "1-5759e988-bd862e3fe1be46a994272793", Convert(id))
}

func TestConvert_Shape(t *testing.T) {
	ids := [][16]byte{
		{},
		{0x01},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		{0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d},
	}

	wantLen := len(TraceIDVersion) + 1 + 8 + 1 + 24

	for _, id := range ids {
		got := Convert(id)
		assert.Len(t, got, wantLen)
		assert.Equal(t, 2, strings.Count(got, TraceIDDelimiter))
		assert.True(t, strings.HasPrefix(got, TraceIDVersion+TraceIDDelimiter))
		assert.Equal(t, strings.ToLower(got), got, "must be lowercase hex")
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	ids := [][16]byte{
		{},
		{0xde, 0xad, 0xbe, 0xef},
		{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}

	for _, id := range ids {
		got := Convert(id)

		// Stripping the version and delimiters must reconstruct the
		// zero-padded 32-digit hex representation exactly.
		parts := strings.Split(got, TraceIDDelimiter)
		require.Len(t, parts, 3)
		assert.Equal(t, hex.EncodeToString(id[:]), parts[1]+parts[2])
	}
}

func TestConvert_Deterministic(t *testing.T) {
	id := [16]byte{0x57, 0x59, 0xe9, 0x88, 0xbd, 0x86, 0x2e, 0x3f, 0xe1, 0xbe, 0x46, 0xa9, 0x94, 0x27, 0x27, 0x93}
	assert.Equal(t, Convert(id), Convert(id))
}

func TestConvertHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "full width",
			input: "5759e988bd862e3fe1be46a994272793",
			want:  "1-5759e988-bd862e3fe1be46a994272793",
		},
		{
			name:  "short input is left padded",
			input: "abc",
			want:  "1-00000000-000000000000000000000abc",
		},
		{
			name:  "uppercase is normalized",
			input: "5759E988BD862E3FE1BE46A994272793",
			want:  "1-5759e988-bd862e3fe1be46a994272793",
		},
		{
			name:    "too long",
			input:   "05759e988bd862e3fe1be46a994272793",
			wantErr: true,
		},
		{
			name:    "not hex",
			input:   "zz59e988bd862e3fe1be46a994272793",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertHex(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	var id [16]byte
	assert.Equal(t, `{"traceId": "1-00000000-000000000000000000000000"}`, Format(id))
}
