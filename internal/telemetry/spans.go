package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for upload and storage operations.
const (
	AttrSessionID  = "upload.session_id"
	AttrUserID     = "upload.user_id"
	AttrPartNumber = "upload.part_number"
	AttrChunkSize  = "upload.chunk_size"
	AttrOffset     = "upload.offset"
	AttrTotalBytes = "upload.total_bytes"

	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
	AttrUploadID  = "storage.upload_id"
	AttrStoreName = "store.name"
	AttrOperation = "store.operation"

	AttrClientIP = "client.ip"
)

// StartStoreSpan starts a span for an object store operation.
// The span name follows the "objectstore.<operation>" convention.
func StartStoreSpan(ctx context.Context, operation, bucket, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String(AttrOperation, operation),
		attribute.String(AttrBucket, bucket),
		attribute.String(AttrKey, key),
	}
	base = append(base, attrs...)
	return StartSpan(ctx, "objectstore."+operation, trace.WithAttributes(base...))
}

// StartUploadSpan starts a span for an upload service operation.
// The span name follows the "upload.<operation>" convention.
func StartUploadSpan(ctx context.Context, operation, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
	}
	base = append(base, attrs...)
	return StartSpan(ctx, "upload."+operation, trace.WithAttributes(base...))
}

// Int64Attr builds an int64 attribute. Shorthand for call sites that
// would otherwise import the attribute package for a single value.
func Int64Attr(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

// StringAttr builds a string attribute.
func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
