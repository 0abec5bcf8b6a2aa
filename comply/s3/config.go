package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/activestorage-tools/comply/comply"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region. S3-compatible stores generally accept
	// any value; "us-east-1" is a safe default.
	Region string

	// Endpoint is the object-store endpoint URL,
	// e.g. "http://localhost:9000" for MinIO.
	Endpoint string

	// UsePathStyle enables path-style addressing, required by MinIO and
	// most self-hosted S3-compatible stores.
	UsePathStyle bool

	// Credentials are the static credentials to use. If nil, the default
	// credential chain applies.
	Credentials aws.CredentialsProvider
}

// NewClient creates an S3 client with the given configuration.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// NewStoreFromConfig wires a fixture store straight from the suite
// configuration: static credentials and path-style addressing against
// the configured S3 source.
func NewStoreFromConfig(ctx context.Context, cfg *comply.Config) (*Store, error) {
	client, err := NewClient(ctx, ClientConfig{
		Endpoint:     cfg.S3Source,
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AWSID, cfg.AWSPassword, ""),
	})
	if err != nil {
		return nil, err
	}
	return New(client, cfg.Bucket)
}
