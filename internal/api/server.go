package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuneJin9655/ai-chat/internal/cache"
	"github.com/JuneJin9655/ai-chat/internal/chat"
	"github.com/JuneJin9655/ai-chat/internal/session"
)

// ChatService is the orchestrator interface the HTTP layer needs.
// Implemented by *chat.Service.
type ChatService interface {
	CreateSession(ctx context.Context, userID string) (*session.Session, error)
	ListSessions(ctx context.Context, userID string) ([]*session.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID, userID string) error
	GetMessages(ctx context.Context, sessionID uuid.UUID, page, limit int) (*session.Page, error)
	SendMessage(ctx context.Context, sessionID uuid.UUID, text string) ([]*session.Message, error)
	StreamMessage(ctx context.Context, sessionID uuid.UUID, text string) (*chat.Stream, error)
	CacheStats(ctx context.Context) cache.Stats
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Chat        ChatService   // Required
	Pool        *pgxpool.Pool // Optional: nil makes /ready report unavailable
	Logger      *slog.Logger
	CORSOrigins []string // Allowed origins for CORS
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &sessionHandler{chat: cfg.Chat, logger: logger}
	ch := &chatHandler{chat: cfg.Chat, logger: logger}

	mux := http.NewServeMux()

	// Session CRUD
	mux.HandleFunc("POST /chat/new", sh.createSession)
	mux.HandleFunc("GET /chat/all", sh.listSessions)
	mux.HandleFunc("GET /chat/{chatId}", sh.getSession)
	mux.HandleFunc("DELETE /chat/{chatId}", sh.deleteSession)

	// Conversation turns and message reads
	mux.HandleFunc("GET /chat/{chatId}/messages", ch.getMessages)
	mux.HandleFunc("POST /chat/{chatId}/message", ch.sendMessage)
	mux.HandleFunc("POST /chat/{chatId}/stream", ch.streamMessage)
	mux.HandleFunc("GET /chat/stats/cache", ch.cacheStats)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id headers are in place.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// userID extracts the caller identity supplied by the auth proxy.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// chatID parses the {chatId} path segment.
func chatID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("chatId"))
}
