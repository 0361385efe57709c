package session

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for the
	// given ID.
	ErrSessionNotFound = errors.New("upload session not found")

	// ErrDuplicateIdempotencyKey is returned by Create when the
	// (userID, idempotencyKey) pair is already bound to a session.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already in use")

	// ErrDraftNotFound is returned when no draft exists for the given
	// upload ID.
	ErrDraftNotFound = errors.New("content draft not found")
)
