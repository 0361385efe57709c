// Package jobs provides the durable transcode-and-pin job queue fed by
// completed uploads.
//
// The queue is backed by Badger so enqueued jobs survive restarts.
// Delivery is at-least-once: the downstream worker must be idempotent
// on session ID.
package jobs

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrQueueClosed is returned by operations on a closed queue.
var ErrQueueClosed = errors.New("job queue is closed")

// ErrNoJobs is returned by Dequeue when the queue is empty.
var ErrNoJobs = errors.New("no jobs available")

// DraftMetadata is the content-draft snapshot carried alongside the job
// so the transcode worker can publish without a second DB round trip.
type DraftMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Tags        string `json:"tags,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	Category    string `json:"category,omitempty"`
}

// TranscodeJob is the message handed to the downstream
// transcode-and-pin worker after a successful upload completion.
type TranscodeJob struct {
	SessionID  string         `json:"sessionId"`
	StorageKey string         `json:"storageKey"`
	UserID     string         `json:"userId"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mimeType"`
	TotalBytes int64          `json:"totalBytes"`
	Draft      *DraftMetadata `json:"draftMetadata,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

func (j *TranscodeJob) encode() ([]byte, error) {
	return json.Marshal(j)
}

func decodeJob(data []byte) (*TranscodeJob, error) {
	var job TranscodeJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
