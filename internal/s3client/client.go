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

// Package s3client wraps the AWS SDK S3 client behind the narrow interface
// the operation layer needs. All failures are returned as *TransportError.
package s3client

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	beaconlog "github.com/tombee/beacon/internal/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// Config configures the S3 client.
type Config struct {
	// Region is the AWS region. Empty uses the SDK's default resolution
	// (AWS_REGION, shared config, IMDS).
	Region string

	// EndpointURL overrides the S3 endpoint, for localstack or
	// S3-compatible stores.
	EndpointURL string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible endpoints.
	UsePathStyle bool

	// VerifyCredentials calls sts:GetCallerIdentity at construction time
	// so credential misconfiguration surfaces at startup instead of on
	// the first request.
	VerifyCredentials bool

	// Instrument appends the otelaws middleware to the SDK client, so
	// every call emits spans from the SDK layer without any hand-built
	// instrumentation.
	Instrument bool
}

// Client lists S3 buckets using the AWS SDK credential chain.
type Client struct {
	s3     *s3.Client
	logger *slog.Logger
}

// New creates a new S3 client. The AWS configuration (credentials, region)
// is resolved through the SDK's default chain.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = beaconlog.WithComponent(logger, "s3client")

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(loadCtx, loadOpts...)
	if err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeAuth,
			Message: "failed to load AWS configuration",
			Cause:   err,
		}
	}

	if cfg.Instrument {
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	}

	if cfg.VerifyCredentials {
		identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(loadCtx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return nil, classify(err)
		}
		logger.Info("AWS credentials verified",
			slog.String("account", aws.ToString(identity.Account)),
			slog.String("arn", aws.ToString(identity.Arn)),
		)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = cfg.UsePathStyle
		}
	})

	return &Client{s3: client, logger: logger}, nil
}

// ListBuckets returns the names of all buckets owned by the caller.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classify(err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		if bucket.Name != nil {
			names = append(names, *bucket.Name)
		}
	}
	return names, nil
}
