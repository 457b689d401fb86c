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

// Package daemon assembles and runs the beacond HTTP service: telemetry
// provider, S3 client, instrumented operation, history store, and the API
// server around them.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tombee/beacon/internal/config"
	"github.com/tombee/beacon/internal/daemon/api"
	"github.com/tombee/beacon/internal/history"
	beaconlog "github.com/tombee/beacon/internal/log"
	"github.com/tombee/beacon/internal/operation"
	"github.com/tombee/beacon/internal/s3client"
	"github.com/tombee/beacon/internal/tracing"
)

// serviceName identifies this service in traces and logs.
const serviceName = "beacon"

// Options carries build metadata into the daemon.
type Options struct {
	Version   string
	Commit    string
	BuildDate string
}

// Daemon is the assembled beacond service.
type Daemon struct {
	cfg      *config.Config
	opts     Options
	logger   *slog.Logger
	provider *tracing.OTelProvider
	store    *history.Store
	server   *http.Server
}

// New assembles a daemon from configuration. The context bounds startup
// work such as AWS credential resolution and OTLP connection setup.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := tracing.NewOTelProviderWithConfig(ctx, tracing.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: opts.Version,
		SampleRate:     cfg.Telemetry.SampleRate,
		Exporter: tracing.ExporterConfig{
			Kind:     tracing.ExporterKind(cfg.Telemetry.Exporter),
			Endpoint: cfg.Telemetry.Endpoint,
			Insecure: cfg.Telemetry.Insecure,
			CAFile:   cfg.Telemetry.CAFile,
			CertFile: cfg.Telemetry.CertFile,
			KeyFile:  cfg.Telemetry.KeyFile,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	client, err := s3client.New(ctx, s3client.Config{
		Region:            cfg.AWS.Region,
		EndpointURL:       cfg.AWS.EndpointURL,
		UsePathStyle:      cfg.AWS.UsePathStyle,
		VerifyCredentials: cfg.AWS.VerifyCredentials,
	}, logger)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	// Second client carrying otelaws middleware, for the auto route. It
	// shares the credential chain but skips re-verification.
	autoClient, err := s3client.New(ctx, s3client.Config{
		Region:       cfg.AWS.Region,
		EndpointURL:  cfg.AWS.EndpointURL,
		UsePathStyle: cfg.AWS.UsePathStyle,
		Instrument:   true,
	}, logger)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
		return nil, fmt.Errorf("failed to create instrumented S3 client: %w", err)
	}

	opOpts := []operation.Option{
		operation.WithInstanceID(cfg.InstanceID),
		operation.WithAutoInstrumented(autoClient),
	}

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.New(history.Config{Path: cfg.History.Path})
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		opOpts = append(opOpts, operation.WithHistory(store))
	}

	op := operation.NewListOperation(
		provider.Tracer(serviceName),
		provider.Metrics(),
		logger,
		client,
		opOpts...,
	)

	router := api.NewRouter(api.RouterConfig{
		Version:   opts.Version,
		Commit:    opts.Commit,
		BuildDate: opts.BuildDate,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	}, op, logger)
	router.SetMetricsCollector(provider.Metrics())
	router.SetMetricsHandler(provider.MetricsHandler())
	if store != nil {
		router.SetHistory(store)
	}

	return &Daemon{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		provider: provider,
		store:    store,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start runs the HTTP server until the context is cancelled or the
// listener fails.
func (d *Daemon) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.server.Addr, err)
	}

	d.logger.Info("beacond starting",
		slog.String("version", d.opts.Version),
		slog.String("listen_addr", ln.Addr().String()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains in-flight requests, flushes telemetry, and closes the
// history store.
func (d *Daemon) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, d.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := d.provider.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history close: %w", err))
		}
	}

	if len(errs) > 0 {
		for _, err := range errs {
			d.logger.Error("shutdown error", beaconlog.Error(err))
		}
		return errs[0]
	}

	d.logger.Info("beacond stopped")
	return nil
}
