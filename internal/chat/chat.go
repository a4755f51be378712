package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/cache"
	"github.com/JuneJin9655/ai-chat/internal/session"
)

// Store is the session persistence interface the Service needs.
// Implemented by *session.Store.
type Store interface {
	CreateSession(ctx context.Context, userID string) (*session.Session, error)
	Session(ctx context.Context, id uuid.UUID) (*session.Session, error)
	Sessions(ctx context.Context, userID string) ([]*session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID, userID string) error
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*session.Message, error)
	Messages(ctx context.Context, sessionID uuid.UUID, page, limit int) ([]*session.Message, int, error)
	History(ctx context.Context, sessionID uuid.UUID) ([]*session.Message, error)
}

// PageCache is the message-page cache interface the Service needs.
// Implemented by *cache.Cache. All methods are best-effort.
type PageCache interface {
	GetPage(ctx context.Context, sessionID uuid.UUID, page, limit int) (*session.Page, bool)
	PutPage(ctx context.Context, sessionID uuid.UUID, page, limit int, p *session.Page, totalCount int)
	Invalidate(ctx context.Context, sessionID uuid.UUID)
	Promote(ctx context.Context, sessionID uuid.UUID, messageCount int)
	Stats(ctx context.Context) cache.Stats
}

// Config contains all required parameters for the chat Service.
type Config struct {
	Store    Store
	Cache    PageCache
	Provider Provider
	Logger   *slog.Logger

	// TokenBudget caps the context window per turn.
	// Zero uses DefaultTokenBudget.
	TokenBudget int

	// Tokens overrides the token estimator. Nil uses EstimateTokens.
	Tokens Tokenizer
}

func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Cache == nil {
		return errors.New("cache is required")
	}
	if cfg.Provider == nil {
		return errors.New("provider is required")
	}
	return nil
}

// Service coordinates the store, the cache, the context window selection and
// the completion provider for conversation turns.
//
// Service is stateless and safe for concurrent use.
type Service struct {
	store       Store
	cache       PageCache
	provider    Provider
	logger      *slog.Logger
	tokenBudget int
	tokens      Tokenizer
}

// New creates a Service from cfg.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if cfg.Tokens == nil {
		cfg.Tokens = EstimateTokens
	}
	return &Service{
		store:       cfg.Store,
		cache:       cfg.Cache,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
		tokenBudget: cfg.TokenBudget,
		tokens:      cfg.Tokens,
	}, nil
}

// CreateSession starts a new conversation for userID.
func (s *Service) CreateSession(ctx context.Context, userID string) (*session.Session, error) {
	return s.store.CreateSession(ctx, userID)
}

// ListSessions returns userID's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	return s.store.Sessions(ctx, userID)
}

// GetSession returns one session by ID. Returns session.ErrNotFound when it
// does not exist.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	return s.store.Session(ctx, id)
}

// DeleteSession removes a session, its messages and its cache entries.
func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID, userID string) error {
	if err := s.store.DeleteSession(ctx, id, userID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// GetMessages returns one page of a session's history, cache-aside: the
// cache is checked first, and on a miss the store is queried and the result
// cached. The page's Source field reports which path served it.
func (s *Service) GetMessages(ctx context.Context, sessionID uuid.UUID, page, limit int) (*session.Page, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("%w (page=%d limit=%d)", ErrInvalidPagination, page, limit)
	}

	if _, err := s.store.Session(ctx, sessionID); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.GetPage(ctx, sessionID, page, limit); ok {
		cached.Source = session.SourceCache
		return cached, nil
	}

	start := time.Now()
	messages, total, err := s.store.Messages(ctx, sessionID, page, limit)
	if err != nil {
		return nil, err
	}

	p := &session.Page{
		Messages: messages,
		Pagination: session.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: session.TotalPages(total, limit),
		},
		Source:    session.SourceDatabase,
		QueryTime: time.Since(start).Milliseconds(),
	}

	s.cache.PutPage(ctx, sessionID, page, limit, p, total)
	s.cache.Promote(ctx, sessionID, total)
	return p, nil
}

// SendMessage runs one batch conversation turn: persist the user message,
// trim the history to the token budget, call the provider, persist the
// assistant reply and invalidate the session's cached pages. Returns the
// full history in chronological order including both new messages.
func (s *Service) SendMessage(ctx context.Context, sessionID uuid.UUID, text string) ([]*session.Message, error) {
	history, window, err := s.beginTurn(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}

	reply, err := s.provider.Complete(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	assistant, err := s.store.AppendMessage(ctx, sessionID, session.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, sessionID)

	s.logger.Debug("completed turn",
		"session_id", sessionID,
		"window_size", len(window),
		"reply_len", len(reply),
	)
	return append(history, assistant), nil
}

// CacheStats reports the message cache's hit/miss counters.
func (s *Service) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}

// beginTurn performs the shared start of a batch or streaming turn: validate
// the text, check the session, persist the user message and select the
// context window. Returns the post-append history and the provider-ready
// window.
func (s *Service) beginTurn(ctx context.Context, sessionID uuid.UUID, text string) ([]*session.Message, []ProviderMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyMessage
	}

	if _, err := s.store.Session(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	if _, err := s.store.AppendMessage(ctx, sessionID, session.RoleUser, text); err != nil {
		return nil, nil, err
	}
	s.cache.Invalidate(ctx, sessionID)

	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	selected := SelectWindow(history, s.tokenBudget, s.tokens)
	window := make([]ProviderMessage, len(selected))
	for i, msg := range selected {
		window[i] = ProviderMessage{Role: msg.Role, Content: msg.Content}
	}
	return history, window, nil
}
