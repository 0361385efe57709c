package session

import (
	"context"
	"fmt"
	"time"
)

// CreateDraft inserts the metadata draft attached to a new session.
func (s *Store) CreateDraft(ctx context.Context, draft *ContentDraft) error {
	draft.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(draft).Error; err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

// GetDraft returns the draft for an upload, or ErrDraftNotFound.
func (s *Store) GetDraft(ctx context.Context, uploadID string) (*ContentDraft, error) {
	var draft ContentDraft
	if err := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).First(&draft).Error; err != nil {
		return nil, convertNotFoundError(err, ErrDraftNotFound)
	}
	return &draft, nil
}

// DraftUpdate carries the mutable draft fields. Nil fields are left
// unchanged.
type DraftUpdate struct {
	Title        *string
	Description  *string
	Tags         *string
	Visibility   *string
	Category     *string
	ThumbnailURL *string
}

// UpdateDraft applies a partial update to the draft for an upload.
func (s *Store) UpdateDraft(ctx context.Context, uploadID string, update DraftUpdate) (*ContentDraft, error) {
	fields := map[string]any{"updated_at": time.Now()}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.Tags != nil {
		fields["tags"] = *update.Tags
	}
	if update.Visibility != nil {
		fields["visibility"] = *update.Visibility
	}
	if update.Category != nil {
		fields["category"] = *update.Category
	}
	if update.ThumbnailURL != nil {
		fields["thumbnail_url"] = *update.ThumbnailURL
	}

	result := s.db.WithContext(ctx).
		Model(&ContentDraft{}).
		Where("upload_id = ?", uploadID).
		Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update draft: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrDraftNotFound
	}

	return s.GetDraft(ctx, uploadID)
}
