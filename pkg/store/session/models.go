package session

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of an upload session.
type Status string

const (
	// StatusUploading accepts chunk PUTs. The only non-terminal state
	// reachable by the client write path.
	StatusUploading Status = "uploading"

	// StatusUploaded means all bytes are in the object store and the
	// multipart upload is completed. Set by the completion path only.
	StatusUploaded Status = "uploaded"

	// StatusProcessing through StatusHDReady are advanced by the
	// downstream transcode worker, never by the upload core.
	StatusProcessing Status = "processing"
	StatusPlayable   Status = "playable"
	StatusHDReady    Status = "hd_ready"

	// StatusFailed and StatusAborted are terminal.
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
)

// AcceptsChunks reports whether chunk PUTs are allowed in this state.
func (s Status) AcceptsChunks() bool {
	return s == StatusUploading
}

// Terminal reports whether the session can never change state again.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusAborted
}

// Completed reports whether the upload bytes are fully stored.
func (s Status) Completed() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusPlayable, StatusHDReady:
		return true
	}
	return false
}

// Part records one stored chunk of a session's multipart upload.
type Part struct {
	PartNumber int32     `json:"partNumber"`
	ETag       string    `json:"etag"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// PartList is the parts column, stored as a JSON array ordered by part
// number.
type PartList []Part

// Value implements driver.Valuer so GORM serializes parts as JSON.
func (p PartList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parts: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (p *PartList) Scan(value any) error {
	if value == nil {
		*p = PartList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PartList", value)
	}
	if len(data) == 0 {
		*p = PartList{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to unmarshal parts: %w", err)
	}
	return nil
}

// Has reports whether a part with the given number is already recorded.
func (p PartList) Has(partNumber int32) bool {
	for _, part := range p {
		if part.PartNumber == partNumber {
			return true
		}
	}
	return false
}

// TotalSize returns the sum of part sizes.
func (p PartList) TotalSize() int64 {
	var total int64
	for _, part := range p {
		total += part.Size
	}
	return total
}

// UploadSession is the authoritative per-upload record.
//
// BytesReceived always equals the sum of Parts sizes, and Parts form a
// contiguous prefix 1..N. Both are mutated only inside WithLockedSession
// transactions.
type UploadSession struct {
	ID              string `gorm:"primaryKey;size:64"`
	UserID          string `gorm:"size:64;index;not null"`
	Filename        string `gorm:"size:255;not null"`
	MimeType        string `gorm:"size:128;not null"`
	TotalBytes      int64  `gorm:"not null"`
	ChunkSize       int64  `gorm:"not null"`
	StorageKey      string `gorm:"size:512;not null"`
	StorageUploadID string `gorm:"size:512;not null"`
	BytesReceived   int64  `gorm:"not null;default:0"`
	Parts           PartList
	Status          Status  `gorm:"size:32;index;not null"`
	IdempotencyKey  *string `gorm:"size:128;uniqueIndex:idx_sessions_user_idem,composite:user_id"`
	ErrorCode       *string `gorm:"size:64"`
	CID             *string `gorm:"size:128"`
	PinStatus       *string `gorm:"size:32"`
	PlaybackURL     *string `gorm:"size:512"`
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the default pluralization.
func (UploadSession) TableName() string { return "upload_sessions" }

// Progress returns completion as a whole percentage 0..100.
func (s *UploadSession) Progress() int {
	if s.TotalBytes <= 0 {
		return 0
	}
	return int(s.BytesReceived * 100 / s.TotalBytes)
}

// ContentDraft is the optional metadata bag attached to a session.
// The upload core never gates on it.
type ContentDraft struct {
	ID           string  `gorm:"primaryKey;size:64"`
	UploadID     string  `gorm:"size:64;uniqueIndex;not null"`
	UserID       string  `gorm:"size:64;index;not null"`
	Title        string  `gorm:"size:255"`
	Description  string  `gorm:"type:text"`
	Tags         string  `gorm:"size:1024"`
	Visibility   string  `gorm:"size:32"`
	Category     string  `gorm:"size:64"`
	ThumbnailURL *string `gorm:"size:512"`
	UpdatedAt    time.Time
}

// TableName overrides the default pluralization.
func (ContentDraft) TableName() string { return "content_drafts" }

// UploadMetric is one append-only upload event. Writes are
// fire-and-forget: failures are logged and swallowed.
type UploadMetric struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	UploadID         string `gorm:"size:64;index;not null"`
	UserID           string `gorm:"size:64;not null"`
	EventType        string `gorm:"size:64;not null"`
	ChunkNumber      *int32
	ChunkSizeBytes   *int64
	ProcessingTimeMs *int64
	ErrorCode        *string `gorm:"size:64"`
	ClientIP         string  `gorm:"size:64"`
	UserAgent        string  `gorm:"size:255"`
	Metadata         string  `gorm:"type:text"`
	CreatedAt        time.Time
}

// TableName overrides the default pluralization.
func (UploadMetric) TableName() string { return "upload_metrics" }

// AllModels returns every model managed by AutoMigrate.
func AllModels() []any {
	return []any{
		&UploadSession{},
		&ContentDraft{},
		&UploadMetric{},
	}
}
