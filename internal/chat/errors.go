package chat

import "errors"

// Sentinel errors for chat operations. Callers check them with errors.Is().
var (
	// ErrEmptyMessage indicates the message text is empty or whitespace-only.
	ErrEmptyMessage = errors.New("message content cannot be empty")

	// ErrInvalidPagination indicates a non-positive page or limit.
	ErrInvalidPagination = errors.New("page and limit must be positive integers")

	// ErrUpstream indicates the completion provider call failed.
	ErrUpstream = errors.New("completion provider failed")
)
