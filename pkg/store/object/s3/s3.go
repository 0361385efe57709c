// Package s3 implements the object.Store interface against Amazon S3 or
// any S3-compatible endpoint (MinIO, localstack, Ceph RGW).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/reelforge/reelforge/internal/telemetry"
	"github.com/reelforge/reelforge/pkg/store/object"
)

// Config holds configuration for the S3 object store.
type Config struct {
	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible
	// services).
	Endpoint string

	// ForcePathStyle forces path-style addressing. Required for
	// localstack and MinIO.
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey configure static credentials.
	// When empty, the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// KeyPrefix is prepended to all object keys (e.g., "media/").
	// Should end with "/" if non-empty.
	KeyPrefix string
}

// Store is an S3-backed implementation of object.Store.
//
// Thread safety: safe for concurrent use by multiple goroutines. Part
// bodies are handed to the SDK as streams and are never buffered whole.
type Store struct {
	client    *s3.Client
	keyPrefix string
	metrics   object.Metrics
}

var _ object.Store = (*Store)(nil)

// New creates an S3 object store with an existing client.
func New(client *s3.Client, cfg Config, metrics object.Metrics) *Store {
	return &Store{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
	}
}

// NewFromConfig creates an S3 object store by building an S3 client from
// config. This is the preferred constructor when no client exists yet.
func NewFromConfig(ctx context.Context, cfg Config, metrics object.Metrics) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg, metrics), nil
}

func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start), err)
	}
}

// CreateMultipart initiates a multipart upload for the given key.
func (s *Store) CreateMultipart(ctx context.Context, bucket, key, contentType string) (string, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "create_multipart", bucket, key)
	defer span.End()

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.fullKey(key)),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	result, err := s.client.CreateMultipartUpload(ctx, input)
	s.observe("CreateMultipartUpload", start, err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return "", fmt.Errorf("failed to create multipart upload: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordActiveUpload(1)
	}

	return aws.ToString(result.UploadId), nil
}

// UploadPart streams one part into the multipart upload.
//
// The body is handed directly to the SDK with an explicit content
// length, so the part is never buffered in memory. Cancelling ctx
// cancels the in-flight request.
func (s *Store) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body io.Reader, contentLength int64) (object.Part, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "upload_part", bucket, key,
		telemetry.Int64Attr(telemetry.AttrPartNumber, int64(partNumber)),
		telemetry.Int64Attr(telemetry.AttrChunkSize, contentLength))
	defer span.End()

	start := time.Now()
	result, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s.fullKey(key)),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(contentLength),
	})
	s.observe("UploadPart", start, err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return object.Part{}, fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	if s.metrics != nil {
		s.metrics.RecordBytes("UploadPart", contentLength)
	}

	return object.Part{
		PartNumber: partNumber,
		ETag:       aws.ToString(result.ETag),
		Size:       contentLength,
	}, nil
}

// CompleteMultipart assembles the uploaded parts into the final object.
// Parts must be submitted in ascending part-number order.
func (s *Store) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []object.Part) (object.CompleteResult, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "complete_multipart", bucket, key)
	defer span.End()

	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	start := time.Now()
	result, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(s.fullKey(key)),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	s.observe("CompleteMultipartUpload", start, err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return object.CompleteResult{}, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordActiveUpload(-1)
	}

	return object.CompleteResult{
		Location: aws.ToString(result.Location),
		ETag:     aws.ToString(result.ETag),
	}, nil
}

// AbortMultipart cancels an in-progress multipart upload.
//
// Idempotent: aborting an upload the store no longer knows succeeds.
func (s *Store) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	ctx, span := telemetry.StartStoreSpan(ctx, "abort_multipart", bucket, key)
	defer span.End()

	start := time.Now()
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(s.fullKey(key)),
		UploadId: aws.String(uploadID),
	})
	s.observe("AbortMultipartUpload", start, err)

	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) {
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("failed to abort multipart upload: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordActiveUpload(-1)
	}

	return nil
}

// HeadObject returns metadata for a completed object.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (object.Info, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "head_object", bucket, key)
	defer span.End()

	start := time.Now()
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	s.observe("HeadObject", start, err)
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return object.Info{}, object.ErrObjectNotFound
		}
		telemetry.RecordError(ctx, err)
		return object.Info{}, fmt.Errorf("failed to head object: %w", err)
	}

	return object.Info{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		ETag:         aws.ToString(result.ETag),
		LastModified: aws.ToTime(result.LastModified),
	}, nil
}

// GetObjectStream opens a completed object for reading.
func (s *Store) GetObjectStream(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "get_object", bucket, key)
	defer span.End()

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, object.ErrObjectNotFound
		}
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return result.Body, nil
}
