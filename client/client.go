// Package client is a Go client for the ai-chat HTTP API.
//
// Besides typed wrappers over the JSON endpoints it keeps a local,
// session-keyed copy of each message list, refreshed on every read and
// send. The copy makes revisiting a session instant and is purely an
// optimization; the server is always the source of truth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/cache"
	"github.com/JuneJin9655/ai-chat/internal/session"
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d (%s)", e.Status, e.Code)
}

// Turn is the result of one batch conversation turn.
type Turn struct {
	ChatID   string             `json:"chatId"`
	Messages []*session.Message `json:"messages"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport. The default is http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to one ai-chat server on behalf of one user.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	local map[uuid.UUID][]*session.Message
}

// New creates a Client for the server at baseURL acting as userID.
func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		local:      make(map[uuid.UUID][]*session.Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession starts a new conversation.
func (c *Client) CreateSession(ctx context.Context) (*session.Session, error) {
	var sess session.Session
	if err := c.doJSON(ctx, http.MethodPost, "/chat/new", nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns the user's sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]*session.Session, error) {
	var sessions []*session.Session
	if err := c.doJSON(ctx, http.MethodGet, "/chat/all", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns one session.
func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	var sess session.Session
	if err := c.doJSON(ctx, http.MethodGet, "/chat/"+id.String(), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetMessages returns one page of a session's history and refreshes the
// local copy for that session.
func (c *Client) GetMessages(ctx context.Context, id uuid.UUID, page, limit int) (*session.Page, error) {
	path := "/chat/" + id.String() + "/messages?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var result session.Page
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if page == 1 {
		c.storeLocal(id, result.Messages)
	}
	return &result, nil
}

// SendMessage runs one batch turn and replaces the session's local copy
// with the authoritative history from the response.
func (c *Client) SendMessage(ctx context.Context, id uuid.UUID, text string) (*Turn, error) {
	body := map[string]string{"message": text}
	var turn Turn
	if err := c.doJSON(ctx, http.MethodPost, "/chat/"+id.String()+"/message", body, &turn); err != nil {
		return nil, err
	}
	c.storeLocal(id, turn.Messages)
	return &turn, nil
}

// DeleteSession removes a session and drops its local copy.
func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/chat/"+id.String(), nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.local, id)
	c.mu.Unlock()
	return nil
}

// CacheStats returns the server's message cache statistics.
func (c *Client) CacheStats(ctx context.Context) (*cache.Stats, error) {
	var stats cache.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/chat/stats/cache", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CachedMessages returns the local copy of a session's messages, or nil when
// the session has not been loaded yet. The copy may be stale.
func (c *Client) CachedMessages(id uuid.UUID) []*session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*session.Message(nil), c.local[id]...)
}

func (c *Client) storeLocal(id uuid.UUID, messages []*session.Message) {
	c.mu.Lock()
	c.local[id] = append([]*session.Message(nil), messages...)
	c.mu.Unlock()
}

// doJSON performs one JSON request/response round trip. A nil out discards
// the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-User-ID", c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}
