package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelforge/reelforge/pkg/api/middleware"
	"github.com/reelforge/reelforge/pkg/contentrange"
	"github.com/reelforge/reelforge/pkg/store/session"
	"github.com/reelforge/reelforge/pkg/upload"
)

// UploadHandler serves the resumable upload endpoints.
type UploadHandler struct {
	svc *upload.Service
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(svc *upload.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

type createUploadRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`

	// Optional draft metadata, stored alongside the session.
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Visibility  string `json:"visibility"`
	Category    string `json:"category"`
}

type createUploadResponse struct {
	UploadID   string `json:"uploadId"`
	SessionURL string `json:"sessionUrl"`
	ChunkSize  int64  `json:"chunkSize"`
	DraftID    string `json:"draftId,omitempty"`
}

func sessionURL(sessionID string) string {
	return "/uploads/" + sessionID
}

// Create handles POST /uploads?uploadType=resumable.
//
// Returns 201 with the session URL for a new session, or 200 when an
// Idempotency-Key replay resolves to an existing one.
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		Unauthorized(w, "missing principal")
		return
	}

	if ut := r.URL.Query().Get("uploadType"); ut != "resumable" {
		BadRequest(w, "uploadType must be \"resumable\"")
		return
	}

	var req createUploadRequest
	if err := decodeJSONBody(r, &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	createReq := upload.CreateRequest{
		UserID:         principal.UserID,
		Filename:       req.Filename,
		Size:           req.Size,
		MimeType:       req.MimeType,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ClientIP:       r.RemoteAddr,
		UserAgent:      r.UserAgent(),
	}
	if req.Title != "" || req.Description != "" || req.Tags != "" ||
		req.Visibility != "" || req.Category != "" {
		createReq.Draft = &upload.DraftInput{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Visibility:  req.Visibility,
			Category:    req.Category,
		}
	}

	result, err := h.svc.CreateSession(r.Context(), createReq)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	sess := result.Session
	w.Header().Set("Location", sessionURL(sess.ID))
	w.Header().Set("X-Upload-Content-Length", strconv.FormatInt(sess.TotalBytes, 10))
	w.Header().Set("X-Upload-Content-Type", sess.MimeType)
	w.Header().Set("Cache-Control", "no-store")

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, &createUploadResponse{
		UploadID:   sess.ID,
		SessionURL: sessionURL(sess.ID),
		ChunkSize:  sess.ChunkSize,
		DraftID:    result.DraftID,
	})
}

type completedUploadResponse struct {
	UploadID   string `json:"uploadId"`
	StorageKey string `json:"storageKey"`
	Size       int64  `json:"size"`
}

// Append handles PUT /uploads/{id}: a data chunk or a status probe.
//
// Progress and corrections answer 308 with the authoritative offset;
// the final chunk answers 201. The body is handed to the service unread
// so corrections never consume it.
func (h *UploadHandler) Append(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		Unauthorized(w, "missing principal")
		return
	}
	chunk, ok := middleware.ChunkFromContext(r.Context())
	if !ok {
		BadRequest(w, "missing chunk envelope")
		return
	}

	sessionID := chi.URLParam(r, "id")
	result, err := h.svc.AppendChunk(r.Context(), sessionID, principal.UserID,
		chunk.Range, chunk.ContentLength, r.Body)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if result.Completed {
		WriteJSONCreated(w, &completedUploadResponse{
			UploadID:   result.SessionID,
			StorageKey: result.StorageKey,
			Size:       result.TotalBytes,
		})
		return
	}

	writeProgress(w, result.BytesReceived)
}

// writeProgress answers 308 Resume Incomplete with the current offset.
func writeProgress(w http.ResponseWriter, bytesReceived int64) {
	w.Header().Set("Upload-Offset", strconv.FormatInt(bytesReceived, 10))
	if rangeHeader, ok := contentrange.ProgressRange(bytesReceived); ok {
		w.Header().Set("Range", rangeHeader)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusPermanentRedirect)
}

// Abort handles DELETE /uploads/{id}.
func (h *UploadHandler) Abort(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		Unauthorized(w, "missing principal")
		return
	}

	if err := h.svc.Abort(r.Context(), chi.URLParam(r, "id"), principal.UserID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteNoContent(w)
}

type statusResponse struct {
	Status        string    `json:"status"`
	BytesReceived int64     `json:"bytesReceived"`
	TotalBytes    int64     `json:"totalBytes"`
	Progress      int       `json:"progress"`
	CID           *string   `json:"cid,omitempty"`
	PlaybackURL   *string   `json:"playbackUrl,omitempty"`
	ErrorCode     *string   `json:"errorCode,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Status handles GET /uploads/{id}/status.
func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		Unauthorized(w, "missing principal")
		return
	}

	sess, err := h.svc.Status(r.Context(), chi.URLParam(r, "id"), principal.UserID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSONOK(w, &statusResponse{
		Status:        string(sess.Status),
		BytesReceived: sess.BytesReceived,
		TotalBytes:    sess.TotalBytes,
		Progress:      sess.Progress(),
		CID:           sess.CID,
		PlaybackURL:   sess.PlaybackURL,
		ErrorCode:     sess.ErrorCode,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt,
	})
}

type draftUpdateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Tags         *string `json:"tags"`
	Visibility   *string `json:"visibility"`
	Category     *string `json:"category"`
	ThumbnailURL *string `json:"thumbnailUrl"`
}

type draftResponse struct {
	DraftID     string `json:"draftId"`
	UploadID    string `json:"uploadId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Visibility  string `json:"visibility"`
	Category    string `json:"category"`
}

// UpdateDraft handles PUT /uploads/{id}/draft. Drafts freeze once the
// upload leaves the uploading state.
func (h *UploadHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		Unauthorized(w, "missing principal")
		return
	}

	var req draftUpdateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	draft, err := h.svc.UpdateDraft(r.Context(), chi.URLParam(r, "id"), principal.UserID,
		session.DraftUpdate{
			Title:        req.Title,
			Description:  req.Description,
			Tags:         req.Tags,
			Visibility:   req.Visibility,
			Category:     req.Category,
			ThumbnailURL: req.ThumbnailURL,
		})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSONOK(w, &draftResponse{
		DraftID:     draft.ID,
		UploadID:    draft.UploadID,
		Title:       draft.Title,
		Description: draft.Description,
		Tags:        draft.Tags,
		Visibility:  draft.Visibility,
		Category:    draft.Category,
	})
}
