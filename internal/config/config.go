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

// Package config loads beacond configuration from a YAML file with
// environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the complete beacond configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	AWS       AWSConfig       `yaml:"aws"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`

	// InstanceID distinguishes multiple deployments of the same service.
	// When set, trace IDs returned to callers carry an "_<id>" suffix.
	// Environment: INSTANCE_ID
	InstanceID string `yaml:"instance_id,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port is the TCP port to listen on.
	// Environment: PORT
	// Default: 5000
	Port int `yaml:"port"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// RateLimit is the sustained request rate allowed per second.
	// Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// RateBurst is the burst size for rate limiting.
	RateBurst int `yaml:"rate_burst,omitempty"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// Enabled controls whether spans are exported. Defaults to true.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint.
	// Environment: OTEL_EXPORTER_OTLP_ENDPOINT
	// Default: localhost:4317
	Endpoint string `yaml:"endpoint,omitempty"`

	// Exporter selects the span exporter: "grpc", "http", or "console".
	// Default: grpc
	Exporter string `yaml:"exporter,omitempty"`

	// Insecure disables TLS on the OTLP connection. Defaults to true,
	// matching a local collector sidecar.
	Insecure bool `yaml:"insecure"`

	// CAFile is a PEM bundle trusted for the collector certificate when
	// TLS is on.
	CAFile string `yaml:"ca_file,omitempty"`

	// CertFile and KeyFile enable mutual TLS toward the collector.
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`

	// SampleRate sets head sampling: 0 never, 1 always.
	// Default: 1.0
	SampleRate float64 `yaml:"sample_rate"`
}

// AWSConfig configures the S3 client.
type AWSConfig struct {
	// Region overrides the SDK's resolved region.
	// Environment: AWS_REGION
	Region string `yaml:"region,omitempty"`

	// EndpointURL points the client at a custom endpoint (e.g. LocalStack).
	// Environment: AWS_ENDPOINT_URL
	EndpointURL string `yaml:"endpoint_url,omitempty"`

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible local stacks.
	UsePathStyle bool `yaml:"use_path_style,omitempty"`

	// VerifyCredentials calls STS GetCallerIdentity at startup so credential
	// problems surface before the first request.
	VerifyCredentials bool `yaml:"verify_credentials,omitempty"`
}

// HistoryConfig configures the invocation history store.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	// Environment: BEACON_HISTORY_PATH
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level: debug, info, warn, error. Default: info.
	// Environment: BEACON_LOG_LEVEL
	Level string `yaml:"level,omitempty"`

	// Format: "json" or "text". Default: json.
	// Environment: LOG_FORMAT
	Format string `yaml:"format,omitempty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ShutdownTimeout: 10 * time.Second,
			RateBurst:       10,
		},
		Telemetry: TelemetryConfig{
			Enabled:    true,
			Endpoint:   "localhost:4317",
			Exporter:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional YAML file, applies defaults to
// missing fields, overlays environment variables, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyDefaults fills in zero values so minimal config files work without
// specifying every field.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = defaults.Server.RateBurst
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = defaults.Telemetry.Endpoint
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = defaults.Telemetry.Exporter
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// loadFromEnv overlays environment variables onto the configuration.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Server.Port = port
		}
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Telemetry.Endpoint = val
	}
	if val := os.Getenv("INSTANCE_ID"); val != "" {
		c.InstanceID = val
	}
	if val := os.Getenv("AWS_REGION"); val != "" {
		c.AWS.Region = val
	}
	if val := os.Getenv("AWS_ENDPOINT_URL"); val != "" {
		c.AWS.EndpointURL = val
	}
	if val := os.Getenv("BEACON_HISTORY_PATH"); val != "" {
		c.History.Path = val
	}
	if val := os.Getenv("BEACON_LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: sample rate %v must be in [0, 1]", ErrInvalidConfig, c.Telemetry.SampleRate)
	}
	switch c.Telemetry.Exporter {
	case "grpc", "http", "console":
	default:
		return fmt.Errorf("%w: unknown exporter %q", ErrInvalidConfig, c.Telemetry.Exporter)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	return nil
}
