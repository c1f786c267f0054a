package visual

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AssetStore resolves a premade asset key to its SVG payload.
type AssetStore interface {
	Fetch(ctx context.Context, key string) (string, error)
}

// S3AssetStore fetches premade asset payloads from an S3 bucket.
// Payloads are cached for the process lifetime; assets are immutable.
type S3AssetStore struct {
	client *s3.Client
	bucket string
	prefix string

	mu    sync.Mutex
	cache map[string]string
}

// NewS3AssetStore creates an asset store for the given bucket. Region
// may be empty to use the SDK default resolution.
func NewS3AssetStore(ctx context.Context, bucket, prefix, region string) (*S3AssetStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3AssetStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		cache:  make(map[string]string),
	}, nil
}

// Fetch downloads the asset payload, serving repeats from cache.
func (s *S3AssetStore) Fetch(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	if payload, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return payload, nil
	}
	s.mu.Unlock()

	objectKey := strings.TrimSuffix(s.prefix, "/")
	if objectKey != "" {
		objectKey += "/"
	}
	objectKey += key + ".svg"

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return "", fmt.Errorf("get asset %s: %w", objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read asset %s: %w", objectKey, err)
	}

	payload := string(data)
	s.mu.Lock()
	s.cache[key] = payload
	s.mu.Unlock()
	return payload, nil
}
