package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSession(userID string) *UploadSession {
	return &UploadSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		Filename:        "movie.mp4",
		MimeType:        "video/mp4",
		TotalBytes:      10240,
		ChunkSize:       1024,
		StorageKey:      "uploads/" + userID + "/x/movie.mp4",
		StorageUploadID: "mpu-" + uuid.NewString(),
		Status:          StatusUploading,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, StatusUploading, got.Status)
	assert.Empty(t, got.Parts)
	assert.Zero(t, got.BytesReceived)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIdempotencyKeyUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key := "client-key-1"
	first := newTestSession("user-1")
	first.IdempotencyKey = &key
	require.NoError(t, store.Create(ctx, first))

	second := newTestSession("user-1")
	second.IdempotencyKey = &key
	err := store.Create(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)

	// Same key under a different user is fine.
	other := newTestSession("user-2")
	other.IdempotencyKey = &key
	assert.NoError(t, store.Create(ctx, other))

	found, err := store.FindByIdempotency(ctx, "user-1", key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestNilIdempotencyKeysDoNotCollide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("user-1")))
	require.NoError(t, store.Create(ctx, newTestSession("user-1")))
}

func TestWithLockedSessionAppendsParts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))

	err := store.WithLockedSession(ctx, sess.ID, func(s *UploadSession) error {
		AppendPart(s, Part{PartNumber: 1, ETag: `"e1"`, Size: 1024})
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, got.BytesReceived)
	require.Len(t, got.Parts, 1)
	assert.EqualValues(t, 1, got.Parts[0].PartNumber)
}

func TestWithLockedSessionRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))

	boom := fmt.Errorf("boom")
	err := store.WithLockedSession(ctx, sess.ID, func(s *UploadSession) error {
		AppendPart(s, Part{PartNumber: 1, ETag: `"e1"`, Size: 1024})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BytesReceived)
	assert.Empty(t, got.Parts)
}

func TestAppendPartIdempotent(t *testing.T) {
	sess := newTestSession("user-1")

	part := Part{PartNumber: 1, ETag: `"e1"`, Size: 1024}
	AppendPart(sess, part)
	AppendPart(sess, part)

	assert.Len(t, sess.Parts, 1)
	assert.EqualValues(t, 1024, sess.BytesReceived)
	assert.EqualValues(t, sess.Parts.TotalSize(), sess.BytesReceived)
}

func TestAppendPartKeepsOrder(t *testing.T) {
	sess := newTestSession("user-1")

	AppendPart(sess, Part{PartNumber: 2, ETag: `"e2"`, Size: 1024})
	AppendPart(sess, Part{PartNumber: 1, ETag: `"e1"`, Size: 1024})

	require.Len(t, sess.Parts, 2)
	assert.EqualValues(t, 1, sess.Parts[0].PartNumber)
	assert.EqualValues(t, 2, sess.Parts[1].PartNumber)
}

func TestConcurrentLockedAppendsSerialize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int32) {
			defer wg.Done()
			_ = store.WithLockedSession(ctx, sess.ID, func(s *UploadSession) error {
				AppendPart(s, Part{PartNumber: n + 1, ETag: fmt.Sprintf(`"e%d"`, n+1), Size: 1024})
				return nil
			})
		}(int32(i))
	}
	wg.Wait()

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Parts, workers)
	assert.EqualValues(t, got.Parts.TotalSize(), got.BytesReceived)

	seen := map[int32]bool{}
	for _, p := range got.Parts {
		assert.False(t, seen[p.PartNumber], "duplicate part %d", p.PartNumber)
		seen[p.PartNumber] = true
	}
}

func TestSetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))

	code := "expired"
	require.NoError(t, store.SetStatus(ctx, sess.ID, StatusAborted, &code))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, got.Status)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, "expired", *got.ErrorCode)

	assert.ErrorIs(t, store.SetStatus(ctx, "nope", StatusFailed, nil), ErrSessionNotFound)
}

func TestSetIPFS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	sess.Status = StatusUploaded
	require.NoError(t, store.Create(ctx, sess))

	require.NoError(t, store.SetIPFS(ctx, sess.ID, IPFSResult{
		CID:         "bafybeigdyrzt5s",
		PinStatus:   "pinned",
		PlaybackURL: "https://cdn.example.com/v/abc/master.m3u8",
	}))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CID)
	assert.Equal(t, "bafybeigdyrzt5s", *got.CID)
}

func TestListStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expired := newTestSession("user-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, expired))

	fresh := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, fresh))

	done := newTestSession("user-1")
	done.Status = StatusUploaded
	done.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, done))

	stale, err := store.ListStale(ctx, time.Now(), time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, expired.ID, stale[0].ID)
}

func TestDrafts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))

	draft := &ContentDraft{
		ID:       uuid.NewString(),
		UploadID: sess.ID,
		UserID:   sess.UserID,
		Title:    "My video",
	}
	require.NoError(t, store.CreateDraft(ctx, draft))

	title := "Renamed"
	visibility := "unlisted"
	updated, err := store.UpdateDraft(ctx, sess.ID, DraftUpdate{Title: &title, Visibility: &visibility})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "unlisted", updated.Visibility)

	_, err = store.UpdateDraft(ctx, "nope", DraftUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestRecordMetricNeverFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunk := int32(3)
	store.RecordMetric(ctx, &UploadMetric{
		UploadID:    "u1",
		UserID:      "user-1",
		EventType:   EventChunkStored,
		ChunkNumber: &chunk,
	})

	metrics, err := store.ListMetrics(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, EventChunkStored, metrics[0].EventType)
}

func TestDeleteRemovesSessionAndDraft(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("user-1")
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, store.CreateDraft(ctx, &ContentDraft{
		ID: uuid.NewString(), UploadID: sess.ID, UserID: sess.UserID,
	}))

	require.NoError(t, store.Delete(ctx, sess.ID))

	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.GetDraft(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestPartListScanValue(t *testing.T) {
	parts := PartList{
		{PartNumber: 1, ETag: `"e1"`, Size: 1024, UploadedAt: time.Now().UTC()},
		{PartNumber: 2, ETag: `"e2"`, Size: 512, UploadedAt: time.Now().UTC()},
	}

	value, err := parts.Value()
	require.NoError(t, err)

	var decoded PartList
	require.NoError(t, decoded.Scan(value))
	require.Len(t, decoded, 2)
	assert.Equal(t, parts[0].PartNumber, decoded[0].PartNumber)
	assert.Equal(t, parts[1].Size, decoded[1].Size)

	var empty PartList
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
}
