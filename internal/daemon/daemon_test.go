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

package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombee/beacon/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Telemetry.Exporter = "console"
	cfg.History.Path = ":memory:"
	return cfg
}

func TestNewAndShutdown(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	d, err := New(context.Background(), testConfig(), Options{Version: "test"}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.store)

	require.NoError(t, d.Shutdown(context.Background()))
}

func TestNew_NoHistory(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	cfg := testConfig()
	cfg.History.Path = ""

	d, err := New(context.Background(), cfg, Options{}, nil)
	require.NoError(t, err)
	require.Nil(t, d.store)

	require.NoError(t, d.Shutdown(context.Background()))
}
