package evidence

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore persists a finalized evidence document at a caller-chosen
// path and returns its retrievable URL. Grounded on
// Mindburn-Labs-helm's artifacts.S3Store, adapted from content-hash
// keying to the path-addressed layout spec.md §4.B requires
// (evidence/{seller_id}/{sync_id}/{rule_type}/{dedupe_hash}.json) —
// the dedupe hash already makes the path content-stable, so a second
// hash-prefix layer would be redundant.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) (url string, err error)
}

// S3BlobStore is the production BlobStore, backed by AWS S3 (or any
// S3-compatible endpoint such as MinIO/LocalStack via UsePathStyle).
type S3BlobStore struct {
	client   *s3.Client
	bucket   string
	urlBase  string
}

// S3BlobStoreConfig mirrors Mindburn's S3StoreConfig shape.
type S3BlobStoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO/LocalStack
}

// NewS3BlobStore builds an S3BlobStore from config, following the
// same aws-sdk-go-v2 wiring as Mindburn-Labs-helm's NewS3Store.
func NewS3BlobStore(ctx context.Context, cfg S3BlobStoreConfig) (*S3BlobStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	client := s3.NewFromConfig(awsCfg, clientOpts)
	urlBase := cfg.Endpoint
	if urlBase == "" {
		urlBase = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}

	return &S3BlobStore{client: client, bucket: cfg.Bucket, urlBase: urlBase}, nil
}

func (s *S3BlobStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put failed for %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.urlBase, s.bucket, key), nil
}

// MemoryBlobStore is an in-memory BlobStore used by tests and local
// development; it satisfies the same interface as S3BlobStore so the
// Evidence Builder never needs a live bucket to be exercised.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(_ context.Context, key string, data []byte, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = cp
	return "memory://" + key, nil
}

func (m *MemoryBlobStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}
