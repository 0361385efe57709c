package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Create inserts a new session. The unique index on
// (user_id, idempotency_key) turns a replayed create into
// ErrDuplicateIdempotencyKey so the caller can re-read the winner.
func (s *Store) Create(ctx context.Context, sess *UploadSession) error {
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	if sess.Parts == nil {
		sess.Parts = PartList{}
	}

	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByIdempotency returns the session bound to (userID, key), or
// ErrSessionNotFound.
func (s *Store) FindByIdempotency(ctx context.Context, userID, key string) (*UploadSession, error) {
	var sess UploadSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&sess).Error
	if err != nil {
		return nil, convertNotFoundError(err, ErrSessionNotFound)
	}
	return &sess, nil
}

// Get returns the session with the given ID, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, id string) (*UploadSession, error) {
	var sess UploadSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, convertNotFoundError(err, ErrSessionNotFound)
	}
	return &sess, nil
}

// WithLockedSession loads the session under a row-level lock, runs fn
// with it, and persists the (possibly mutated) session on success. Any
// error from fn rolls the transaction back.
//
// Every mutation of parts, bytesReceived, or status goes through here:
// concurrent chunk PUTs on the same session serialize on the lock and
// observe each other's committed state.
func (s *Store) WithLockedSession(ctx context.Context, id string, fn func(sess *UploadSession) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", id)
		if s.supportsRowLock() {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var sess UploadSession
		if err := query.First(&sess).Error; err != nil {
			return convertNotFoundError(err, ErrSessionNotFound)
		}

		if err := fn(&sess); err != nil {
			return err
		}

		sess.UpdatedAt = time.Now()
		if err := tx.Save(&sess).Error; err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// AppendPart records one stored part inside an already locked session.
// Idempotent on part number: a duplicate leaves the session unchanged.
// BytesReceived stays equal to the sum of part sizes by construction.
func AppendPart(sess *UploadSession, part Part) {
	if sess.Parts.Has(part.PartNumber) {
		return
	}
	if part.UploadedAt.IsZero() {
		part.UploadedAt = time.Now()
	}
	sess.Parts = append(sess.Parts, part)
	sort.Slice(sess.Parts, func(i, j int) bool {
		return sess.Parts[i].PartNumber < sess.Parts[j].PartNumber
	})
	sess.BytesReceived += part.Size
}

// SetStatus updates the session status and optional error code.
// Used by paths that do not already hold the row lock (abort, reaper).
func (s *Store) SetStatus(ctx context.Context, id string, status Status, errorCode *string) error {
	result := s.db.WithContext(ctx).
		Model(&UploadSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"error_code": errorCode,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// IPFSResult carries the fields written back by the downstream
// pin-and-transcode worker.
type IPFSResult struct {
	CID         string
	PinStatus   string
	PlaybackURL string
}

// SetIPFS records the downstream processing result on the session.
func (s *Store) SetIPFS(ctx context.Context, id string, result IPFSResult) error {
	res := s.db.WithContext(ctx).
		Model(&UploadSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"cid":          result.CID,
			"pin_status":   result.PinStatus,
			"playback_url": result.PlaybackURL,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update ipfs result: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListStale returns uploading sessions that have expired or have seen
// no chunk since the given cutoff. Used by the reaper.
func (s *Store) ListStale(ctx context.Context, now time.Time, staleCutoff time.Time) ([]*UploadSession, error) {
	var sessions []*UploadSession
	err := s.db.WithContext(ctx).
		Where("status = ? AND (expires_at < ? OR updated_at < ?)",
			StatusUploading, now, staleCutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return sessions, nil
}

// ListByStatus returns sessions in the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]*UploadSession, error) {
	var sessions []*UploadSession
	query := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ListSessions returns the most recent sessions, optionally filtered by
// user. Used by the sessions CLI command.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]*UploadSession, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []*UploadSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session row and its draft. Only the reaper calls
// this, and only after the multipart upload has been aborted.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", id).Delete(&ContentDraft{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&UploadSession{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}
