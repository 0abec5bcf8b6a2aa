package comply

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default settings for optional configuration.
const (
	DefaultBucket      = "active-storage-compliance-test-data"
	DefaultParallelism = 8
	DefaultTimeout     = 30 * time.Second
	DefaultSeed        = 10
)

// Config is the explicit configuration value threaded through the case
// generator, fixture builder, request encoder, and runner. There is no
// process-wide mutable state; construct one Config and pass it down.
type Config struct {
	// S3Source is the object-store endpoint the service under test reads
	// from, e.g. "http://localhost:9000".
	S3Source string

	// AWSID and AWSPassword are the object-store credential pair, also
	// sent to the service as basic auth.
	AWSID       string
	AWSPassword string

	// ProxyURL is the endpoint of the service under test.
	ProxyURL string

	// Bucket holds generated fixtures for the duration of a run.
	Bucket string

	// TestCountHeader enables x-activestorage-count assertions.
	TestCountHeader bool

	// CompressionAlgs and FilterAlgs are allow-lists of algorithms the
	// service supports. Either may be empty to disable that dimension of
	// the test matrix entirely.
	CompressionAlgs []Compression
	FilterAlgs      []Filter

	// Parallelism bounds how many cases run concurrently.
	Parallelism int

	// Timeout applies to each network operation (upload, request, delete).
	Timeout time.Duration

	// Seed drives fixture generation; a fixed seed makes runs reproducible.
	Seed int64
}

// ConfigFromEnv reads the recognized environment variables:
//
//	S3_SOURCE                          object-store endpoint (required)
//	AWS_ID, AWS_PASSWORD               credentials (required)
//	PROXY_URL                          service under test (required)
//	BUCKET_NAME                        fixture bucket
//	TEST_X_ACTIVESTORAGE_COUNT_HEADER  bool, default true
//	COMPRESSION_ALGS                   comma list, may be empty
//	FILTER_ALGS                        comma list, may be empty
//	COMPLY_PARALLELISM                 int, default 8
//	COMPLY_TIMEOUT                     duration, default 30s
//	COMPLY_SEED                        int, default 10
//
// A missing required variable or an unparsable value is a configuration
// error, fatal before any case runs.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		S3Source:        os.Getenv("S3_SOURCE"),
		AWSID:           os.Getenv("AWS_ID"),
		AWSPassword:     os.Getenv("AWS_PASSWORD"),
		ProxyURL:        os.Getenv("PROXY_URL"),
		Bucket:          DefaultBucket,
		TestCountHeader: true,
		Parallelism:     DefaultParallelism,
		Timeout:         DefaultTimeout,
		Seed:            DefaultSeed,
	}

	if v := os.Getenv("BUCKET_NAME"); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv("TEST_X_ACTIVESTORAGE_COUNT_HEADER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: TEST_X_ACTIVESTORAGE_COUNT_HEADER=%q: %v", ErrBadConfig, v, err)
		}
		cfg.TestCountHeader = b
	}

	comps, err := parseCompressionList(os.Getenv("COMPRESSION_ALGS"))
	if err != nil {
		return nil, err
	}
	cfg.CompressionAlgs = comps

	filts, err := parseFilterList(os.Getenv("FILTER_ALGS"))
	if err != nil {
		return nil, err
	}
	cfg.FilterAlgs = filts

	if v := os.Getenv("COMPLY_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: COMPLY_PARALLELISM=%q", ErrBadConfig, v)
		}
		cfg.Parallelism = n
	}
	if v := os.Getenv("COMPLY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: COMPLY_TIMEOUT=%q", ErrBadConfig, v)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("COMPLY_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: COMPLY_SEED=%q", ErrBadConfig, v)
		}
		cfg.Seed = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	var missing []string
	if c.S3Source == "" {
		missing = append(missing, "S3_SOURCE")
	}
	if c.AWSID == "" {
		missing = append(missing, "AWS_ID")
	}
	if c.AWSPassword == "" {
		missing = append(missing, "AWS_PASSWORD")
	}
	if c.ProxyURL == "" {
		missing = append(missing, "PROXY_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required settings: %s", ErrBadConfig, strings.Join(missing, ", "))
	}
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket must not be empty", ErrBadConfig)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be positive", ErrBadConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrBadConfig)
	}
	return nil
}

func parseCompressionList(raw string) ([]Compression, error) {
	var out []Compression
	for _, name := range splitList(raw) {
		c, err := ParseCompression(name)
		if err != nil {
			return nil, fmt.Errorf("%w: COMPRESSION_ALGS: %v", ErrBadConfig, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseFilterList(raw string) ([]Filter, error) {
	var out []Filter
	for _, name := range splitList(raw) {
		f, err := ParseFilter(name)
		if err != nil {
			return nil, fmt.Errorf("%w: FILTER_ALGS: %v", ErrBadConfig, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
