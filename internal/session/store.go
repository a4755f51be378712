package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the interface for database operations the Store needs.
// Satisfied by *pgxpool.Pool and pgx.Tx. Defined here, by the consumer,
// so the Store depends on an abstraction rather than a concrete pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// messageCols is the standard SELECT column list for scanMessages.
const messageCols = `id, session_id, role, content, created_at`

// Store manages session persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// CreateSession creates a new conversation session owned by userID.
// The title defaults to a creation-date-derived string.
func (s *Store) CreateSession(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	sess := &Session{
		ID:     uuid.New(),
		UserID: userID,
		Title:  DefaultTitle(time.Now()),
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, user_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		pgUUID(sess.ID), userID, sess.Title,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID, "user_id", userID)
	return sess, nil
}

// Session retrieves a session by ID.
// Returns ErrNotFound if no such session exists.
func (s *Store) Session(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := &Session{ID: id}
	var pid pgtype.UUID

	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, title, created_at
		 FROM chat_sessions WHERE id = $1`,
		pgUUID(id),
	).Scan(&pid, &sess.UserID, &sess.Title, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}

	return sess, nil
}

// Sessions lists a user's sessions, newest first.
func (s *Store) Sessions(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, title, created_at
		 FROM chat_sessions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var pid pgtype.UUID
		sess := &Session{}
		if err := rows.Scan(&pid, &sess.UserID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.ID = goUUID(pid)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession deletes a session owned by userID and, via cascade, all of
// its messages. Returns ErrNotFound when the session does not exist or
// belongs to another user.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`,
		pgUUID(id), userID,
	)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted session", "id", id, "user_id", userID)
	return nil
}

// AppendMessage appends a single immutable message to a session.
// This is the only mutator of a session's message list.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	msg := &Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		pgUUID(msg.ID), pgUUID(sessionID), role, content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appending message to session %s: %w", sessionID, err)
	}

	s.logger.Debug("appended message",
		"session_id", sessionID,
		"role", role,
		"content_len", len(content),
	)
	return msg, nil
}

// Messages retrieves one page of a session's messages ordered ascending by
// creation time, plus the total message count for pagination metadata.
// page is 1-based.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, page, limit int) ([]*Message, int, error) {
	if page < 1 || limit < 1 {
		return nil, 0, fmt.Errorf("page and limit must be positive (page=%d limit=%d)", page, limit)
	}

	total, err := s.CountMessages(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+messageCols+`
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		pgUUID(sessionID), limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("getting messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// History retrieves a session's full ordered message history, oldest first.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+messageCols+`
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC`,
		pgUUID(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("getting history for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// CountMessages returns the total number of messages in a session.
func (s *Store) CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var total int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE session_id = $1`,
		pgUUID(sessionID),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("counting messages for session %s: %w", sessionID, err)
	}
	return total, nil
}

// scanMessages drains rows into application-level messages.
func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		var id, sid pgtype.UUID
		msg := &Message{}
		if err := rows.Scan(&id, &sid, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.ID = goUUID(id)
		msg.SessionID = goUUID(sid)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return messages, nil
}

// pgUUID converts uuid.UUID to pgtype.UUID.
func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// goUUID converts pgtype.UUID to uuid.UUID.
func goUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
