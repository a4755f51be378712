package session

import (
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Page source tags reported to callers of the paginated message read.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// Session represents a conversation session (application-level type).
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message represents a single conversation turn (application-level type).
// Messages are immutable once persisted.
type Message struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Pagination describes the position of a page within a session's history.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of a session's message history, plus where it came from.
// QueryTime is the read latency in milliseconds, reported for observability.
type Page struct {
	Messages   []*Message `json:"messages"`
	Pagination Pagination `json:"pagination"`
	Source     string     `json:"source"`
	QueryTime  int64      `json:"queryTime,omitempty"`
}

// TotalPages computes the page count for a total row count at a given limit.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// DefaultTitle derives the human-readable title for a new session from its
// creation time.
func DefaultTitle(createdAt time.Time) string {
	return "Chat " + createdAt.Format("2006-01-02")
}
