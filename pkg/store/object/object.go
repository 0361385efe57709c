// Package object defines the narrow object-store capability surface the
// upload service depends on.
//
// The write path uses only the multipart operations; HeadObject and
// GetObjectStream exist for downstream consumers (transcode, IPFS
// pinning) that read completed objects.
package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// MaxPartNumber is the highest part number accepted by S3-compatible
// stores.
const MaxPartNumber = 10000

// ErrUploadNotFound is returned when an operation references a multipart
// upload the store does not know. AbortMultipart treats it as success.
var ErrUploadNotFound = errors.New("multipart upload not found")

// ErrObjectNotFound is returned by HeadObject and GetObjectStream for
// missing keys.
var ErrObjectNotFound = errors.New("object not found")

// Part identifies one stored part of a multipart upload.
type Part struct {
	PartNumber int32
	ETag       string
	Size       int64
}

// CompleteResult describes the object assembled by CompleteMultipart.
type CompleteResult struct {
	Location string
	ETag     string
}

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Store is the object-store interface consumed by the upload service.
//
// Implementations must stream UploadPart bodies without buffering a full
// part in memory, and must make AbortMultipart idempotent: aborting an
// upload that is already absent succeeds.
type Store interface {
	// CreateMultipart initiates a multipart upload and returns its handle.
	CreateMultipart(ctx context.Context, bucket, key, contentType string) (string, error)

	// UploadPart streams exactly contentLength bytes from body into the
	// given part number (1-based). Parts for distinct numbers may be
	// uploaded concurrently.
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body io.Reader, contentLength int64) (Part, error)

	// CompleteMultipart assembles the uploaded parts, submitted in
	// ascending part-number order, into the final object.
	CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []Part) (CompleteResult, error)

	// AbortMultipart cancels an in-progress multipart upload. Succeeds
	// when the upload is already absent.
	AbortMultipart(ctx context.Context, bucket, key, uploadID string) error

	// HeadObject returns metadata for a completed object.
	HeadObject(ctx context.Context, bucket, key string) (Info, error)

	// GetObjectStream opens a completed object for reading. The caller
	// owns the returned reader and must close it.
	GetObjectStream(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Metrics is an optional collector for object-store operations.
// A nil Metrics is valid and records nothing.
type Metrics interface {
	// ObserveOperation records one store call with its duration and outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by an operation.
	RecordBytes(operation string, bytes int64)

	// RecordActiveUpload adjusts the in-flight multipart upload gauge.
	RecordActiveUpload(delta int)
}
