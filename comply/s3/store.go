// Package s3 provides the S3-compatible fixture store for the compliance
// suite. It targets MinIO, AWS S3, and other S3-compatible object stores;
// the service under test reads fixtures from the same endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/activestorage-tools/comply/comply"
)

// API defines the subset of the S3 client interface the store uses.
// This enables testing with mock implementations.
type API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements comply.Store against an S3-compatible backend.
type Store struct {
	client API
	bucket string
}

// New creates a fixture store over a pre-configured S3 client.
//
// The client must carry credentials and endpoint configuration; use
// NewClient for S3-compatible services like MinIO.
func New(client API, bucket string) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the fixture bucket if it does not already exist.
// An already-owned bucket is not an error.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
				return nil
			}
		}
		return fmt.Errorf("s3: create bucket: %w", err)
	}
	return nil
}

// Put writes a fixture under the given key, overwriting any previous
// object. Fixture keys are collision-free by construction, so no
// conditional write is needed.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errors.New("s3: key is required")
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}

// Get retrieves a fixture. Returns comply.ErrNotFound for missing keys.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, comply.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: reading object body: %w", err)
	}
	return data, nil
}

// Delete removes the key if it exists. S3 DeleteObject is idempotent, so
// deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object: %w", err)
	}
	return nil
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

// Ensure Store implements comply.Store.
var _ comply.Store = (*Store)(nil)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API. It stores objects in memory and
// supports error injection per operation.
type MockS3Client struct {
	mu      sync.RWMutex
	buckets map[string]bool
	objects map[string][]byte

	// Injected errors, returned once set.
	PutErr    error
	GetErr    error
	DeleteErr error
}

// NewMockS3Client creates an empty mock S3 client.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
	}
}

// Objects returns a snapshot of the stored keys.
func (m *MockS3Client) Objects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}

// CreateBucket implements API.CreateBucket for testing.
func (m *MockS3Client) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	name := aws.ToString(params.Bucket)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[name] {
		return nil, &types.BucketAlreadyOwnedByYou{}
	}
	m.buckets[name] = true
	return &s3.CreateBucketOutput{}, nil
}

// PutObject implements API.PutObject for testing.
func (m *MockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.PutErr != nil {
		return nil, m.PutErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.objects[aws.ToString(params.Key)] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.RLock()
	data, exists := m.objects[aws.ToString(params.Key)]
	m.mu.RUnlock()

	if !exists {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// DeleteObject implements API.DeleteObject for testing.
func (m *MockS3Client) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.DeleteErr != nil {
		return nil, m.DeleteErr
	}

	m.mu.Lock()
	delete(m.objects, aws.ToString(params.Key))
	m.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}
