package session

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/internal/logger"
)

// Upload metric event types.
const (
	EventSessionCreated = "session_created"
	EventChunkStored    = "chunk_stored"
	EventChunkRejected  = "chunk_rejected"
	EventUploadComplete = "upload_complete"
	EventUploadFailed   = "upload_failed"
	EventUploadAborted  = "upload_aborted"
	EventUploadExpired  = "upload_expired"
)

// RecordMetric appends one upload event. Fire-and-forget: failures are
// logged and never surfaced, a metric must not fail an upload.
func (s *Store) RecordMetric(ctx context.Context, metric *UploadMetric) {
	if metric.CreatedAt.IsZero() {
		metric.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(metric).Error; err != nil {
		logger.Warn("failed to record upload metric",
			logger.KeySessionID, metric.UploadID,
			"event_type", metric.EventType,
			logger.KeyError, err)
	}
}

// ListMetrics returns the recorded events for one upload, oldest first.
func (s *Store) ListMetrics(ctx context.Context, uploadID string) ([]*UploadMetric, error) {
	var metrics []*UploadMetric
	err := s.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Order("created_at ASC").
		Find(&metrics).Error
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
