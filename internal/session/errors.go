package session

import "errors"

// Sentinel errors for session operations. Part of the Store's public API;
// callers check them with errors.Is().
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidRole indicates a message role outside user/assistant.
	ErrInvalidRole = errors.New("invalid message role")
)
