package paper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultS3Key is the object key used when none is configured.
const DefaultS3Key = "paperbot/version.txt"

// S3Config holds the settings of an S3 compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Key       string
}

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps the version in a single object. A PUT replaces the object
// as a whole, so readers never see a partial value.
type S3Store struct {
	client s3API
	bucket string
	key    string
	mu     sync.Mutex
}

// NewS3Store creates a store for an S3 compatible endpoint using static
// credentials and path-style addressing.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}

	return newS3Store(s3.New(opts), cfg.Bucket, cfg.Key), nil
}

func newS3Store(client s3API, bucket, key string) *S3Store {
	if key == "" {
		key = DefaultS3Key
	}
	return &S3Store{client: client, bucket: bucket, key: key}
}

// Load downloads the object. A missing object is reported as absent.
func (s *S3Store) Load(ctx context.Context) (string, bool, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: downloading %s: %v", ErrIO, s.key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(io.LimitReader(output.Body, 4096))
	if err != nil {
		return "", false, fmt.Errorf("%w: reading %s: %v", ErrIO, s.key, err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", false, nil
	}
	return version, true, nil
}

// Save uploads the version as a text/plain object.
func (s *S3Store) Save(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader([]byte(strings.TrimSpace(version))),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("%w: uploading %s: %v", ErrIO, s.key, err)
	}
	return nil
}
