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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/beacon/internal/config"
	"github.com/tombee/beacon/internal/daemon"
	"github.com/tombee/beacon/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML configuration file")
		port         = flag.Int("port", 0, "HTTP listen port (overrides config)")
		otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP collector endpoint (overrides config)")
		exporter     = flag.String("exporter", "", "Span exporter: grpc, http, or console")
		instanceID   = flag.String("instance-id", "", "Instance ID appended to returned trace IDs")
		historyPath  = flag.String("history-path", "", "SQLite file for invocation history")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("beacond %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Initialize structured logging from environment
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Apply CLI flag overrides
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *otlpEndpoint != "" {
		cfg.Telemetry.Endpoint = *otlpEndpoint
	}
	if *exporter != "" {
		cfg.Telemetry.Exporter = *exporter
	}
	if *instanceID != "" {
		cfg.InstanceID = *instanceID
	}
	if *historyPath != "" {
		cfg.History.Path = *historyPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := daemon.New(ctx, cfg, daemon.Options{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	}, logger)
	if err != nil {
		logger.Error("Failed to create daemon", slog.Any("error", err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
		if err := d.Shutdown(context.Background()); err != nil {
			logger.Error("Error during shutdown", slog.Any("error", err))
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("Daemon error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
