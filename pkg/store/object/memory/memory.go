// Package memory provides an in-memory object.Store for tests and local
// development. Parts and objects live in process memory only.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/pkg/store/object"
)

type multipartUpload struct {
	bucket      string
	key         string
	contentType string
	parts       map[int32][]byte
	etags       map[int32]string
}

type storedObject struct {
	data         []byte
	contentType  string
	etag         string
	lastModified time.Time
}

// Store is an in-memory object.Store implementation.
//
// Call counters are exported for assertions; they count attempts, not
// successes.
type Store struct {
	mu      sync.Mutex
	uploads map[string]*multipartUpload
	objects map[string]*storedObject

	// FailUploadPart, when set, is returned by the next UploadPart call
	// and then cleared.
	FailUploadPart error

	// FailComplete, when set, is returned by the next CompleteMultipart
	// call and then cleared.
	FailComplete error

	CreateCalls   int
	UploadCalls   int
	CompleteCalls int
	AbortCalls    int
}

var _ object.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		uploads: make(map[string]*multipartUpload),
		objects: make(map[string]*storedObject),
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// CreateMultipart initiates a multipart upload.
func (s *Store) CreateMultipart(_ context.Context, bucket, key, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++

	uploadID := uuid.NewString()
	s.uploads[uploadID] = &multipartUpload{
		bucket:      bucket,
		key:         key,
		contentType: contentType,
		parts:       make(map[int32][]byte),
		etags:       make(map[int32]string),
	}
	return uploadID, nil
}

// UploadPart reads the full body and stores it under the part number.
// Re-uploading a part number overwrites the previous data.
func (s *Store) UploadPart(_ context.Context, bucket, key, uploadID string, partNumber int32, body io.Reader, contentLength int64) (object.Part, error) {
	s.mu.Lock()
	s.UploadCalls++
	if err := s.FailUploadPart; err != nil {
		s.FailUploadPart = nil
		s.mu.Unlock()
		return object.Part{}, err
	}
	up, ok := s.uploads[uploadID]
	s.mu.Unlock()
	if !ok || up.bucket != bucket || up.key != key {
		return object.Part{}, object.ErrUploadNotFound
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return object.Part{}, fmt.Errorf("failed to read part body: %w", err)
	}
	if int64(len(data)) != contentLength {
		return object.Part{}, fmt.Errorf("part body is %d bytes, declared %d", len(data), contentLength)
	}

	etag := fmt.Sprintf("%q", uuid.NewString())

	s.mu.Lock()
	up.parts[partNumber] = data
	up.etags[partNumber] = etag
	s.mu.Unlock()

	return object.Part{PartNumber: partNumber, ETag: etag, Size: contentLength}, nil
}

// CompleteMultipart concatenates the submitted parts in order and stores
// the assembled object.
func (s *Store) CompleteMultipart(_ context.Context, bucket, key, uploadID string, parts []object.Part) (object.CompleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompleteCalls++

	if err := s.FailComplete; err != nil {
		s.FailComplete = nil
		return object.CompleteResult{}, err
	}

	up, ok := s.uploads[uploadID]
	if !ok || up.bucket != bucket || up.key != key {
		return object.CompleteResult{}, object.ErrUploadNotFound
	}

	sorted := make([]object.Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var buf bytes.Buffer
	for _, p := range sorted {
		data, ok := up.parts[p.PartNumber]
		if !ok {
			return object.CompleteResult{}, fmt.Errorf("part %d was never uploaded", p.PartNumber)
		}
		if up.etags[p.PartNumber] != p.ETag {
			return object.CompleteResult{}, fmt.Errorf("part %d etag mismatch", p.PartNumber)
		}
		buf.Write(data)
	}

	etag := fmt.Sprintf("%q", uuid.NewString())
	s.objects[objectKey(bucket, key)] = &storedObject{
		data:         buf.Bytes(),
		contentType:  up.contentType,
		etag:         etag,
		lastModified: time.Now(),
	}
	delete(s.uploads, uploadID)

	return object.CompleteResult{
		Location: fmt.Sprintf("memory://%s/%s", bucket, key),
		ETag:     etag,
	}, nil
}

// AbortMultipart discards an in-progress upload. Unknown uploads are a
// no-op.
func (s *Store) AbortMultipart(_ context.Context, _, _, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AbortCalls++
	delete(s.uploads, uploadID)
	return nil
}

// HeadObject returns metadata for a stored object.
func (s *Store) HeadObject(_ context.Context, bucket, key string) (object.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return object.Info{}, object.ErrObjectNotFound
	}
	return object.Info{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		ETag:         obj.etag,
		LastModified: obj.lastModified,
	}, nil
}

// GetObjectStream opens a stored object for reading.
func (s *Store) GetObjectStream(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, object.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// ObjectData returns the raw bytes of a stored object, for assertions.
func (s *Store) ObjectData(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// ActiveUploads returns the number of in-progress multipart uploads.
func (s *Store) ActiveUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}
