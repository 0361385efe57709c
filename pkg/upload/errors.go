package upload

import "errors"

var (
	// ErrFileTooLarge is returned when the declared size is outside
	// [1, MaxUploadBytes].
	ErrFileTooLarge = errors.New("file size exceeds the allowed maximum")

	// ErrInvalidSize is returned for non-positive declared sizes.
	ErrInvalidSize = errors.New("file size must be positive")

	// ErrUnsupportedType is returned when the MIME type is not on the
	// allow-list.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrNotOwner is returned when the caller does not own the session.
	ErrNotOwner = errors.New("session is owned by another user")

	// ErrInvalidState is returned for operations a session's status does
	// not permit, e.g. a chunk PUT against a completed session.
	ErrInvalidState = errors.New("session state does not allow this operation")

	// ErrStorageFailure is returned when the object store rejects an
	// operation. The session is unchanged and the chunk may be retried.
	ErrStorageFailure = errors.New("object storage operation failed")

	// ErrCompleteFailed is returned when assembling the final object
	// fails. The session is terminally failed and must be re-created.
	ErrCompleteFailed = errors.New("failed to complete upload")
)
