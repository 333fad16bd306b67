package conversation

import "errors"

var (
	// ErrEmptyMessage is returned when a turn carries no text.
	ErrEmptyMessage = errors.New("conversation: message is required")
	// ErrVersionConflict is returned by Save when the stored session changed
	// since it was read.
	ErrVersionConflict = errors.New("conversation: session version conflict")
	// ErrSessionNotFound is returned by Get for unknown or expired sessions.
	ErrSessionNotFound = errors.New("conversation: session not found")
	// ErrSessionBusinessMismatch is returned when a session id is reused
	// under a different business than the one that created it.
	ErrSessionBusinessMismatch = errors.New("conversation: session belongs to another business")
)
