package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"shipdocs/internal/core/config"
	"shipdocs/internal/features/shipments/ports"
)

// s3Client is the subset of the S3 API the store uses, so tests can inject a
// fake client.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3ObjectStore implements ports.ObjectStore on an S3-compatible endpoint
// (MinIO in development). Containers map to buckets and are created lazily.
type S3ObjectStore struct {
	client   s3Client
	endpoint string
}

// NewS3ObjectStore builds a store from static credentials against the
// configured endpoint, using path-style addressing for MinIO compatibility.
func NewS3ObjectStore(ctx context.Context, cfg config.S3Config) (*S3ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3ObjectStore{client: client, endpoint: strings.TrimRight(cfg.Endpoint, "/")}, nil
}

// newS3ObjectStoreWithClient allows injecting a test client.
func newS3ObjectStoreWithClient(client s3Client, endpoint string) *S3ObjectStore {
	return &S3ObjectStore{client: client, endpoint: strings.TrimRight(endpoint, "/")}
}

// Put uploads the data and returns the blob locator URL.
func (s *S3ObjectStore) Put(ctx context.Context, container, name string, data io.Reader, contentType string) (string, error) {
	if err := s.ensureBucket(ctx, container); err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object %s/%s: %w", container, name, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.endpoint, container, name), nil
}

// Get downloads the named blob.
func (s *S3ObjectStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: %s/%s", ports.ErrObjectNotFound, container, name)
		}
		return nil, fmt.Errorf("failed to download object %s/%s: %w", container, name, err)
	}

	return out.Body, nil
}

func (s *S3ObjectStore) ensureBucket(ctx context.Context, container string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(container)})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(container)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", container, err)
	}

	return nil
}
