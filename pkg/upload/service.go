// Package upload implements the resumable upload session engine: the
// session state machine, chunk validation against the Content-Range
// protocol, multipart coordination with the object store, and the
// handoff to downstream processing.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/internal/telemetry"
	"github.com/reelforge/reelforge/pkg/contentrange"
	"github.com/reelforge/reelforge/pkg/jobs"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/store/object"
	"github.com/reelforge/reelforge/pkg/store/session"
)

// errRollback aborts a WithLockedSession transaction without surfacing
// an error: used for status probes and correction responses, which must
// leave the row untouched.
var errRollback = errors.New("rollback without mutation")

// Dispatcher hands completed uploads to the job layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *jobs.TranscodeJob) error
}

// Config holds the service limits and storage target.
type Config struct {
	// Bucket is the object-store bucket receiving uploads.
	Bucket string

	// MaxUploadBytes bounds the declared size at session create.
	MaxUploadBytes int64

	// AllowedMimeTypes is the case-insensitive allow-list. Empty allows
	// any type.
	AllowedMimeTypes []string

	// SessionTTL bounds a session's lifetime; the reaper aborts
	// sessions past it.
	SessionTTL time.Duration
}

// Service orchestrates the upload session lifecycle.
type Service struct {
	cfg      Config
	sessions *session.Store
	objects  object.Store
	jobs     Dispatcher
	metrics  *metrics.UploadMetrics
	allowed  map[string]struct{}
}

// NewService wires the session engine. metrics may be nil.
func NewService(cfg Config, sessions *session.Store, objects object.Store, dispatcher Dispatcher, um *metrics.UploadMetrics) *Service {
	allowed := make(map[string]struct{}, len(cfg.AllowedMimeTypes))
	for _, mt := range cfg.AllowedMimeTypes {
		allowed[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		objects:  objects,
		jobs:     dispatcher,
		metrics:  um,
		allowed:  allowed,
	}
}

// Sessions exposes the backing store for read-only consumers (status
// endpoint, CLI listing).
func (s *Service) Sessions() *session.Store {
	return s.sessions
}

// DraftInput carries the optional content metadata supplied at create.
type DraftInput struct {
	Title       string
	Description string
	Tags        string
	Visibility  string
	Category    string
}

// CreateRequest is one session-create call.
type CreateRequest struct {
	UserID         string
	Filename       string
	Size           int64
	MimeType       string
	IdempotencyKey string
	Draft          *DraftInput
	ClientIP       string
	UserAgent      string
}

// CreateResult is the outcome of CreateSession.
type CreateResult struct {
	Session *session.UploadSession
	DraftID string

	// Created is false when an idempotency key replay returned an
	// existing session.
	Created bool
}

func storageKeyFor(userID, sessionID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", userID, sessionID, filename)
}

func (s *Service) mimeAllowed(mimeType string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// CreateSession validates the declared upload, initiates the multipart
// upload, and inserts the session row. A replayed idempotency key
// returns the existing session without touching the object store.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, "create_session", "",
		telemetry.StringAttr(telemetry.AttrUserID, req.UserID),
		telemetry.Int64Attr(telemetry.AttrTotalBytes, req.Size))
	defer span.End()

	if req.Size <= 0 {
		return nil, ErrInvalidSize
	}
	if req.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, req.Size, s.cfg.MaxUploadBytes)
	}
	if !s.mimeAllowed(req.MimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, req.MimeType)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.sessions.FindByIdempotency(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			return s.existingCreateResult(ctx, existing)
		}
		if !errors.Is(err, session.ErrSessionNotFound) {
			return nil, err
		}
	}

	sessionID := uuid.NewString()
	filename := SanitizeFilename(req.Filename)
	storageKey := storageKeyFor(req.UserID, sessionID, filename)

	uploadID, err := s.objects.CreateMultipart(ctx, s.cfg.Bucket, storageKey, req.MimeType)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	now := time.Now()
	sess := &session.UploadSession{
		ID:              sessionID,
		UserID:          req.UserID,
		Filename:        filename,
		MimeType:        req.MimeType,
		TotalBytes:      req.Size,
		ChunkSize:       ChunkSizeFor(req.Size),
		StorageKey:      storageKey,
		StorageUploadID: uploadID,
		Status:          session.StatusUploading,
		ExpiresAt:       now.Add(s.cfg.SessionTTL),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		sess.IdempotencyKey = &key
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		// A concurrent create with the same key won the insert. Release
		// our multipart upload and return the winner.
		if errors.Is(err, session.ErrDuplicateIdempotencyKey) {
			if abortErr := s.objects.AbortMultipart(ctx, s.cfg.Bucket, storageKey, uploadID); abortErr != nil {
				logger.Warn("failed to abort orphaned multipart upload",
					logger.KeyStorageKey, storageKey, logger.KeyError, abortErr)
			}
			winner, findErr := s.sessions.FindByIdempotency(ctx, req.UserID, req.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			return s.existingCreateResult(ctx, winner)
		}
		return nil, err
	}

	draftID := uuid.NewString()
	draft := &session.ContentDraft{
		ID:       draftID,
		UploadID: sessionID,
		UserID:   req.UserID,
	}
	if req.Draft != nil {
		draft.Title = req.Draft.Title
		draft.Description = req.Draft.Description
		draft.Tags = req.Draft.Tags
		draft.Visibility = req.Draft.Visibility
		draft.Category = req.Draft.Category
	}
	if err := s.sessions.CreateDraft(ctx, draft); err != nil {
		logger.Warn("failed to create content draft",
			logger.KeySessionID, sessionID, logger.KeyError, err)
		draftID = ""
	}

	s.metrics.RecordSessionCreated()
	s.sessions.RecordMetric(ctx, &session.UploadMetric{
		UploadID:  sessionID,
		UserID:    req.UserID,
		EventType: session.EventSessionCreated,
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
	})

	logger.Info("upload session created",
		logger.KeySessionID, sessionID,
		logger.KeyUserID, req.UserID,
		logger.KeyFilename, filename,
		logger.KeySize, req.Size,
		"chunk_size", sess.ChunkSize)

	return &CreateResult{Session: sess, DraftID: draftID, Created: true}, nil
}

func (s *Service) existingCreateResult(ctx context.Context, sess *session.UploadSession) (*CreateResult, error) {
	result := &CreateResult{Session: sess}
	if draft, err := s.sessions.GetDraft(ctx, sess.ID); err == nil {
		result.DraftID = draft.ID
	}
	return result, nil
}

// ChunkResult is the outcome of one chunk PUT or status probe.
type ChunkResult struct {
	SessionID     string
	StorageKey    string
	BytesReceived int64
	TotalBytes    int64

	// Completed means the final part landed and the multipart upload
	// was assembled; the caller responds 201.
	Completed bool

	// Corrected means the chunk was out of sync with the session; the
	// body was not consumed and the caller responds 308 with the
	// authoritative offset.
	Corrected bool
}

// AppendChunk validates one chunk against the locked session state and
// streams it into the object store. Alignment mismatches are not
// errors: they produce a correction result with the body unread so the
// client re-sends from the authoritative offset.
func (s *Service) AppendChunk(ctx context.Context, sessionID, userID string, cr *contentrange.Range, contentLength int64, body io.Reader) (*ChunkResult, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, "append_chunk", sessionID,
		telemetry.Int64Attr(telemetry.AttrOffset, cr.Start),
		telemetry.Int64Attr(telemetry.AttrChunkSize, contentLength))
	defer span.End()

	start := time.Now()
	result := &ChunkResult{SessionID: sessionID}
	var storedPart session.Part

	err := s.sessions.WithLockedSession(ctx, sessionID, func(sess *session.UploadSession) error {
		if sess.UserID != userID {
			return ErrNotOwner
		}
		result.StorageKey = sess.StorageKey
		result.BytesReceived = sess.BytesReceived
		result.TotalBytes = sess.TotalBytes

		// Any PUT against a non-uploading session conflicts, probes
		// included.
		if !sess.Status.AcceptsChunks() {
			return fmt.Errorf("%w: status is %s", ErrInvalidState, sess.Status)
		}

		if cr.StatusProbe {
			return errRollback
		}

		if reason := validateChunk(sess, cr, contentLength); reason != "" {
			result.Corrected = true
			logger.Debug("chunk correction",
				logger.KeySessionID, sessionID,
				logger.KeyOffset, cr.Start,
				"reason", reason)
			return errRollback
		}

		partNumber := contentrange.PartNumber(cr.Start, sess.ChunkSize)
		part, err := s.objects.UploadPart(ctx, s.cfg.Bucket, sess.StorageKey,
			sess.StorageUploadID, partNumber, body, contentLength)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}

		storedPart = session.Part{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
			Size:       part.Size,
		}
		session.AppendPart(sess, storedPart)

		result.BytesReceived = sess.BytesReceived
		result.Completed = sess.BytesReceived == sess.TotalBytes
		return nil
	})

	switch {
	case errors.Is(err, errRollback):
		if cr.StatusProbe {
			s.metrics.RecordChunk("probe", 0, 0)
			return result, nil
		}
		s.metrics.RecordChunk("corrected", 0, 0)
		s.recordChunkMetric(ctx, result.SessionID, userID, session.EventChunkRejected, cr, contentLength, nil)
		return result, nil

	case err != nil:
		s.metrics.RecordChunk("error", 0, 0)
		return nil, err
	}

	s.metrics.RecordChunk("stored", contentLength, time.Since(start))
	s.recordChunkMetric(ctx, result.SessionID, userID, session.EventChunkStored, cr, contentLength, &storedPart)

	if result.Completed {
		if err := s.complete(ctx, sessionID, userID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func validateChunk(sess *session.UploadSession, cr *contentrange.Range, contentLength int64) string {
	if cr.Total != contentrange.UnknownTotal && cr.Total != sess.TotalBytes {
		return "total mismatch"
	}
	if cr.Start != sess.BytesReceived {
		return "offset mismatch"
	}
	length := cr.Length()
	if contentLength != length {
		return "content length mismatch"
	}
	if cr.End > sess.TotalBytes-1 {
		return "end past declared size"
	}
	if length != sess.ChunkSize {
		// Only the final chunk may be short, and it must land exactly
		// on the last byte.
		if length > sess.ChunkSize || cr.End != sess.TotalBytes-1 {
			return "chunk size mismatch"
		}
	}
	partNumber := contentrange.PartNumber(cr.Start, sess.ChunkSize)
	if partNumber < 1 || partNumber > object.MaxPartNumber {
		return "part number out of range"
	}
	return ""
}

func (s *Service) recordChunkMetric(ctx context.Context, sessionID, userID, event string, cr *contentrange.Range, contentLength int64, part *session.Part) {
	metric := &session.UploadMetric{
		UploadID:       sessionID,
		UserID:         userID,
		EventType:      event,
		ChunkSizeBytes: &contentLength,
	}
	if part != nil {
		n := part.PartNumber
		metric.ChunkNumber = &n
	}
	s.sessions.RecordMetric(ctx, metric)
}

// complete assembles the multipart upload and transitions the session
// to uploaded under the row lock. A CompleteMultipart failure still
// commits the failed status; only the status write itself can roll
// back.
func (s *Service) complete(ctx context.Context, sessionID, userID string) error {
	ctx, span := telemetry.StartUploadSpan(ctx, "complete", sessionID)
	defer span.End()

	var completeErr error
	var job *jobs.TranscodeJob

	err := s.sessions.WithLockedSession(ctx, sessionID, func(sess *session.UploadSession) error {
		if sess.Status.Completed() {
			// A concurrent final-chunk retry already completed it.
			return errRollback
		}
		if !sess.Status.AcceptsChunks() {
			return fmt.Errorf("%w: status is %s", ErrInvalidState, sess.Status)
		}
		if sess.BytesReceived != sess.TotalBytes {
			return errRollback
		}

		parts := make([]object.Part, len(sess.Parts))
		for i, p := range sess.Parts {
			parts[i] = object.Part{PartNumber: p.PartNumber, ETag: p.ETag, Size: p.Size}
		}

		if _, err := s.objects.CompleteMultipart(ctx, s.cfg.Bucket, sess.StorageKey,
			sess.StorageUploadID, parts); err != nil {
			code := "storage_complete_failed"
			sess.Status = session.StatusFailed
			sess.ErrorCode = &code
			completeErr = fmt.Errorf("%w: %v", ErrCompleteFailed, err)
			// Commit the failed status; the error surfaces after.
			return nil
		}

		sess.Status = session.StatusUploaded
		job = &jobs.TranscodeJob{
			SessionID:  sess.ID,
			StorageKey: sess.StorageKey,
			UserID:     sess.UserID,
			Filename:   sess.Filename,
			MimeType:   sess.MimeType,
			TotalBytes: sess.TotalBytes,
		}
		return nil
	})

	if errors.Is(err, errRollback) {
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.RecordCompletion(completeErr)
	if completeErr != nil {
		telemetry.RecordError(ctx, completeErr)
		s.sessions.RecordMetric(ctx, &session.UploadMetric{
			UploadID: sessionID, UserID: userID, EventType: session.EventUploadFailed,
		})
		logger.Error("upload completion failed",
			logger.KeySessionID, sessionID, logger.KeyError, completeErr)
		return completeErr
	}

	s.sessions.RecordMetric(ctx, &session.UploadMetric{
		UploadID: sessionID, UserID: userID, EventType: session.EventUploadComplete,
	})
	logger.Info("upload completed",
		logger.KeySessionID, sessionID,
		logger.KeyStorageKey, job.StorageKey,
		logger.KeySize, job.TotalBytes)

	s.enqueueJob(ctx, job)
	return nil
}

// enqueueJob hands the completed upload to the job layer. Failure is
// logged, never surfaced: the session stays uploaded and the reaper
// re-enqueues later.
func (s *Service) enqueueJob(ctx context.Context, job *jobs.TranscodeJob) {
	if s.jobs == nil {
		return
	}
	if draft, err := s.sessions.GetDraft(ctx, job.SessionID); err == nil {
		job.Draft = &jobs.DraftMetadata{
			Title:       draft.Title,
			Description: draft.Description,
			Tags:        draft.Tags,
			Visibility:  draft.Visibility,
			Category:    draft.Category,
		}
	}
	err := s.jobs.Dispatch(ctx, job)
	s.metrics.RecordJobEnqueue(err)
}

// Abort cancels the session's multipart upload and marks it aborted.
// Idempotent: aborting an already aborted session succeeds.
func (s *Service) Abort(ctx context.Context, sessionID, userID string) error {
	ctx, span := telemetry.StartUploadSpan(ctx, "abort", sessionID)
	defer span.End()

	err := s.sessions.WithLockedSession(ctx, sessionID, func(sess *session.UploadSession) error {
		if sess.UserID != userID {
			return ErrNotOwner
		}
		if sess.Status == session.StatusAborted {
			return errRollback
		}
		if sess.Status.Completed() {
			return fmt.Errorf("%w: status is %s", ErrInvalidState, sess.Status)
		}

		if err := s.objects.AbortMultipart(ctx, s.cfg.Bucket, sess.StorageKey, sess.StorageUploadID); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		sess.Status = session.StatusAborted
		return nil
	})

	if errors.Is(err, errRollback) {
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.RecordAbort("client")
	s.sessions.RecordMetric(ctx, &session.UploadMetric{
		UploadID: sessionID, UserID: userID, EventType: session.EventUploadAborted,
	})
	logger.Info("upload aborted", logger.KeySessionID, sessionID, logger.KeyUserID, userID)
	return nil
}

// Status returns the session snapshot for its owner.
func (s *Service) Status(ctx context.Context, sessionID, userID string) (*session.UploadSession, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

// UpdateDraft applies a metadata update to the session's draft. Drafts
// freeze once the upload leaves the uploading state.
func (s *Service) UpdateDraft(ctx context.Context, sessionID, userID string, update session.DraftUpdate) (*session.ContentDraft, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotOwner
	}
	if !sess.Status.AcceptsChunks() {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, sess.Status)
	}
	return s.sessions.UpdateDraft(ctx, sessionID, update)
}
