package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/contentrange"
	"github.com/reelforge/reelforge/pkg/jobs"
	"github.com/reelforge/reelforge/pkg/store/object/memory"
	"github.com/reelforge/reelforge/pkg/store/session"
)

type fakeDispatcher struct {
	jobs []*jobs.TranscodeJob
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job *jobs.TranscodeJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// poisonReader fails the test if anything reads from it. Used to prove
// correction responses never consume the body.
type poisonReader struct{ t *testing.T }

func (p *poisonReader) Read([]byte) (int, error) {
	p.t.Error("body was read on a correction path")
	return 0, io.EOF
}

func newTestService(t *testing.T) (*Service, *session.Store, *memory.Store, *fakeDispatcher) {
	t.Helper()

	store, err := session.New(&session.Config{
		Type:   session.DatabaseTypeSQLite,
		SQLite: session.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	objects := memory.New()
	dispatcher := &fakeDispatcher{}

	svc := NewService(Config{
		Bucket:           "media",
		MaxUploadBytes:   1 << 30,
		AllowedMimeTypes: []string{"video/mp4", "video/webm"},
		SessionTTL:       24 * time.Hour,
	}, store, objects, dispatcher, nil)

	return svc, store, objects, dispatcher
}

// seedSession inserts a session with a small chunk size so protocol
// walks do not need multi-megabyte bodies.
func seedSession(t *testing.T, svc *Service, store *session.Store, objects *memory.Store, userID string, totalBytes, chunkSize int64) *session.UploadSession {
	t.Helper()
	ctx := context.Background()

	sessionID := uuid.NewString()
	storageKey := storageKeyFor(userID, sessionID, "movie.mp4")
	uploadID, err := objects.CreateMultipart(ctx, svc.cfg.Bucket, storageKey, "video/mp4")
	require.NoError(t, err)

	sess := &session.UploadSession{
		ID:              sessionID,
		UserID:          userID,
		Filename:        "movie.mp4",
		MimeType:        "video/mp4",
		TotalBytes:      totalBytes,
		ChunkSize:       chunkSize,
		StorageKey:      storageKey,
		StorageUploadID: uploadID,
		Status:          session.StatusUploading,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, sess))
	return sess
}

func chunkRange(start, end, total int64) *contentrange.Range {
	return &contentrange.Range{Start: start, End: end, Total: total}
}

func chunkBody(start, length int64) io.Reader {
	data := make([]byte, length)
	for i := range data {
		data[i] = byte((start + int64(i)) % 251)
	}
	return bytes.NewReader(data)
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, CreateRequest{UserID: "u1", Filename: "a.mp4", Size: 0, MimeType: "video/mp4"})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = svc.CreateSession(ctx, CreateRequest{UserID: "u1", Filename: "a.mp4", Size: 2 << 30, MimeType: "video/mp4"})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.CreateSession(ctx, CreateRequest{UserID: "u1", Filename: "a.exe", Size: 100, MimeType: "application/x-executable"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCreateSessionMimeCaseInsensitive(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	result, err := svc.CreateSession(context.Background(), CreateRequest{
		UserID: "u1", Filename: "a.mp4", Size: 100, MimeType: "Video/MP4",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestCreateSessionBuildsStorageKey(t *testing.T) {
	svc, _, objects, _ := newTestService(t)

	result, err := svc.CreateSession(context.Background(), CreateRequest{
		UserID: "u1", Filename: "my movie!.mp4", Size: 100 << 20, MimeType: "video/mp4",
	})
	require.NoError(t, err)

	sess := result.Session
	assert.Equal(t, "my_movie_.mp4", sess.Filename)
	assert.Equal(t, fmt.Sprintf("uploads/u1/%s/my_movie_.mp4", sess.ID), sess.StorageKey)
	assert.EqualValues(t, 10<<20, sess.ChunkSize)
	assert.NotEmpty(t, sess.StorageUploadID)
	assert.NotEmpty(t, result.DraftID)
	assert.Equal(t, 1, objects.CreateCalls)
	assert.Equal(t, 1, objects.ActiveUploads())
}

func TestCreateSessionIdempotent(t *testing.T) {
	svc, _, objects, _ := newTestService(t)
	ctx := context.Background()

	req := CreateRequest{
		UserID: "u1", Filename: "a.mp4", Size: 100, MimeType: "video/mp4",
		IdempotencyKey: "key-1",
	}

	first, err := svc.CreateSession(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := svc.CreateSession(ctx, req)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, first.Session.ChunkSize, second.Session.ChunkSize)
	assert.Equal(t, first.Session.StorageKey, second.Session.StorageKey)
	assert.Equal(t, first.DraftID, second.DraftID)

	// Only one multipart upload was ever created.
	assert.Equal(t, 1, objects.CreateCalls)
	assert.Equal(t, 1, objects.ActiveUploads())
}

func TestHappyPathTenChunks(t *testing.T) {
	svc, store, objects, dispatcher := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	for i := int64(0); i < 10; i++ {
		start := i * 1024
		end := start + 1023
		result, err := svc.AppendChunk(ctx, sess.ID, "u1",
			chunkRange(start, end, 10240), 1024, chunkBody(start, 1024))
		require.NoError(t, err, "chunk %d", i+1)
		assert.False(t, result.Corrected)
		assert.EqualValues(t, end+1, result.BytesReceived)

		if i < 9 {
			assert.False(t, result.Completed, "chunk %d", i+1)
		} else {
			assert.True(t, result.Completed)
		}
	}

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusUploaded, got.Status)
	assert.EqualValues(t, 10240, got.BytesReceived)
	assert.Len(t, got.Parts, 10)

	// The assembled object holds every byte in order.
	data, ok := objects.ObjectData("media", sess.StorageKey)
	require.True(t, ok)
	assert.Len(t, data, 10240)

	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, sess.ID, dispatcher.jobs[0].SessionID)
	assert.Equal(t, sess.StorageKey, dispatcher.jobs[0].StorageKey)
	assert.EqualValues(t, 10240, dispatcher.jobs[0].TotalBytes)
}

func TestFinalShortChunk(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	// 2.5 chunks: the final one is half-sized and lands on the last byte.
	sess := seedSession(t, svc, store, objects, "u1", 2560, 1024)

	for _, c := range []struct{ start, end int64 }{{0, 1023}, {1024, 2047}} {
		_, err := svc.AppendChunk(ctx, sess.ID, "u1",
			chunkRange(c.start, c.end, 2560), c.end-c.start+1, chunkBody(c.start, c.end-c.start+1))
		require.NoError(t, err)
	}

	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(2048, 2559, 2560), 512, chunkBody(2048, 512))
	require.NoError(t, err)
	assert.True(t, result.Completed)
}

func TestShortChunkNotAtEndIsCorrected(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 511, 10240), 512, &poisonReader{t: t})
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Zero(t, result.BytesReceived)
}

func TestDuplicateChunkIsCorrected(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	for i := int64(0); i < 5; i++ {
		start := i * 1024
		_, err := svc.AppendChunk(ctx, sess.ID, "u1",
			chunkRange(start, start+1023, 10240), 1024, chunkBody(start, 1024))
		require.NoError(t, err)
	}
	uploadsBefore := objects.UploadCalls

	// Re-send chunk 5.
	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(4096, 5119, 10240), 1024, &poisonReader{t: t})
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.EqualValues(t, 5120, result.BytesReceived)
	assert.Equal(t, uploadsBefore, objects.UploadCalls)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Parts, 5)
	assert.EqualValues(t, got.Parts.TotalSize(), got.BytesReceived)
}

func TestOutOfSyncChunkIsCorrected(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	for i := int64(0); i < 2; i++ {
		start := i * 1024
		_, err := svc.AppendChunk(ctx, sess.ID, "u1",
			chunkRange(start, start+1023, 10240), 1024, chunkBody(start, 1024))
		require.NoError(t, err)
	}

	// Client skips ahead to 4096 while the server has 2048.
	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(4096, 5119, 10240), 1024, &poisonReader{t: t})
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.EqualValues(t, 2048, result.BytesReceived)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Parts, 2)
}

func TestTotalMismatchIsCorrected(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 99999), 1024, &poisonReader{t: t})
	require.NoError(t, err)
	assert.True(t, result.Corrected)
}

func TestUnknownTotalChunkAccepted(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, contentrange.UnknownTotal), 1024, chunkBody(0, 1024))
	require.NoError(t, err)
	assert.False(t, result.Corrected)
	assert.EqualValues(t, 1024, result.BytesReceived)
}

func TestStatusProbe(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	_, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 10240), 1024, chunkBody(0, 1024))
	require.NoError(t, err)

	probe := &contentrange.Range{StatusProbe: true, Total: 10240}
	result, err := svc.AppendChunk(ctx, sess.ID, "u1", probe, 0, &poisonReader{t: t})
	require.NoError(t, err)
	assert.EqualValues(t, 1024, result.BytesReceived)
	assert.EqualValues(t, 10240, result.TotalBytes)
	assert.False(t, result.Completed)

	// Probe did not change state.
	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, got.BytesReceived)
	assert.Len(t, got.Parts, 1)
}

func TestAppendChunkAuthorization(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	_, err := svc.AppendChunk(ctx, sess.ID, "intruder",
		chunkRange(0, 1023, 10240), 1024, &poisonReader{t: t})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.AppendChunk(ctx, "missing", "u1",
		chunkRange(0, 1023, 10240), 1024, &poisonReader{t: t})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestPutToTerminalSessionConflicts(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)
	require.NoError(t, svc.Abort(ctx, sess.ID, "u1"))

	_, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 10240), 1024, &poisonReader{t: t})
	assert.ErrorIs(t, err, ErrInvalidState)

	// Probes conflict too.
	probe := &contentrange.Range{StatusProbe: true, Total: contentrange.UnknownTotal}
	_, err = svc.AppendChunk(ctx, sess.ID, "u1", probe, 0, &poisonReader{t: t})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUploadPartFailureLeavesSessionUnchanged(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	objects.FailUploadPart = errors.New("connection reset")
	_, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 10240), 1024, chunkBody(0, 1024))
	assert.ErrorIs(t, err, ErrStorageFailure)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusUploading, got.Status)
	assert.Zero(t, got.BytesReceived)
	assert.Empty(t, got.Parts)

	// The client retries the same chunk and it lands.
	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 10240), 1024, chunkBody(0, 1024))
	require.NoError(t, err)
	assert.EqualValues(t, 1024, result.BytesReceived)
}

func TestCompleteFailureMarksSessionFailed(t *testing.T) {
	svc, store, objects, dispatcher := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 2048, 1024)

	_, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 2048), 1024, chunkBody(0, 1024))
	require.NoError(t, err)

	objects.FailComplete = errors.New("internal error")
	_, err = svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(1024, 2047, 2048), 1024, chunkBody(1024, 1024))
	assert.ErrorIs(t, err, ErrCompleteFailed)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, "storage_complete_failed", *got.ErrorCode)
	assert.Empty(t, dispatcher.jobs)
}

func TestEnqueueFailureDoesNotFailCompletion(t *testing.T) {
	svc, store, objects, dispatcher := newTestService(t)
	ctx := context.Background()

	dispatcher.err = errors.New("queue down")
	sess := seedSession(t, svc, store, objects, "u1", 1024, 1024)

	result, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 1024), 1024, chunkBody(0, 1024))
	require.NoError(t, err)
	assert.True(t, result.Completed)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusUploaded, got.Status)
}

func TestCompletedJobCarriesDraftMetadata(t *testing.T) {
	svc, store, objects, dispatcher := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 1024, 1024)
	require.NoError(t, store.CreateDraft(ctx, &session.ContentDraft{
		ID: uuid.NewString(), UploadID: sess.ID, UserID: "u1",
		Title: "My video", Visibility: "public",
	}))

	_, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 1024), 1024, chunkBody(0, 1024))
	require.NoError(t, err)

	require.Len(t, dispatcher.jobs, 1)
	require.NotNil(t, dispatcher.jobs[0].Draft)
	assert.Equal(t, "My video", dispatcher.jobs[0].Draft.Title)
}

func TestAbort(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	for i := int64(0); i < 3; i++ {
		start := i * 1024
		_, err := svc.AppendChunk(ctx, sess.ID, "u1",
			chunkRange(start, start+1023, 10240), 1024, chunkBody(start, 1024))
		require.NoError(t, err)
	}

	require.NoError(t, svc.Abort(ctx, sess.ID, "u1"))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAborted, got.Status)
	assert.Equal(t, 0, objects.ActiveUploads())

	// Idempotent.
	require.NoError(t, svc.Abort(ctx, sess.ID, "u1"))

	// Authorization still applies.
	assert.ErrorIs(t, svc.Abort(ctx, sess.ID, "intruder"), ErrNotOwner)
	assert.ErrorIs(t, svc.Abort(ctx, "missing", "u1"), session.ErrSessionNotFound)
}

func TestAbortCompletedSessionConflicts(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 1024, 1024)
	_, err := svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 1024), 1024, chunkBody(0, 1024))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Abort(ctx, sess.ID, "u1"), ErrInvalidState)
}

func TestStatus(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 10240, 1024)

	got, err := svc.Status(ctx, sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusUploading, got.Status)
	assert.Equal(t, 0, got.Progress())

	_, err = svc.Status(ctx, sess.ID, "intruder")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestUpdateDraft(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	sess := seedSession(t, svc, store, objects, "u1", 1024, 1024)
	require.NoError(t, store.CreateDraft(ctx, &session.ContentDraft{
		ID: uuid.NewString(), UploadID: sess.ID, UserID: "u1",
	}))

	title := "Renamed"
	draft, err := svc.UpdateDraft(ctx, sess.ID, "u1", session.DraftUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", draft.Title)

	_, err = svc.UpdateDraft(ctx, sess.ID, "intruder", session.DraftUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotOwner)

	// Drafts freeze after completion.
	_, err = svc.AppendChunk(ctx, sess.ID, "u1",
		chunkRange(0, 1023, 1024), 1024, chunkBody(0, 1024))
	require.NoError(t, err)
	_, err = svc.UpdateDraft(ctx, sess.ID, "u1", session.DraftUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrInvalidState)
}
