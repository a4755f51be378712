package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/new" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-User-ID"); got != "u1" {
			t.Errorf("X-User-ID = %q, want %q", got, "u1")
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(session.Session{ID: id, UserID: "u1", Title: "Chat 2025-03-07"})
	}))
	defer srv.Close()

	c := New(srv.URL, "u1", WithLogger(discardLogger()))
	sess, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.ID != id {
		t.Errorf("ID = %v, want %v", sess.ID, id)
	}
	if sess.Title != "Chat 2025-03-07" {
		t.Errorf("Title = %q", sess.Title)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "not_found",
			"message": "chat session not found",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "u1", WithLogger(discardLogger()))
	_, err := c.GetSession(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("GetSession() error = nil, want APIError")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "not_found")
	}
	if apiErr.Message != "chat session not found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSendMessageUpdatesLocalCopy(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/"+id.String()+"/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["message"] != "Hello" {
			t.Errorf("message = %q, want %q", body["message"], "Hello")
		}
		json.NewEncoder(w).Encode(Turn{
			ChatID: id.String(),
			Messages: []*session.Message{
				{Role: session.RoleUser, Content: "Hello"},
				{Role: session.RoleAssistant, Content: "Hi there"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "u1", WithLogger(discardLogger()))
	turn, err := c.SendMessage(context.Background(), id, "Hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(turn.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(turn.Messages))
	}

	cached := c.CachedMessages(id)
	if len(cached) != 2 {
		t.Fatalf("len(CachedMessages) = %d, want 2", len(cached))
	}
	if cached[1].Content != "Hi there" {
		t.Errorf("cached reply = %q, want %q", cached[1].Content, "Hi there")
	}
}

func TestGetMessagesRefreshesFirstPageOnly(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		content := "page " + page
		json.NewEncoder(w).Encode(session.Page{
			Messages:   []*session.Message{{Role: session.RoleUser, Content: content}},
			Pagination: session.Pagination{Page: 1, Limit: 20, Total: 40, TotalPages: 2},
			Source:     session.SourceDatabase,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "u1", WithLogger(discardLogger()))

	if _, err := c.GetMessages(context.Background(), id, 1, 20); err != nil {
		t.Fatalf("GetMessages(page 1) error = %v", err)
	}
	if cached := c.CachedMessages(id); len(cached) != 1 || cached[0].Content != "page 1" {
		t.Fatalf("cached after page 1 = %+v", cached)
	}

	// Deeper pages must not clobber the local copy.
	if _, err := c.GetMessages(context.Background(), id, 2, 20); err != nil {
		t.Fatalf("GetMessages(page 2) error = %v", err)
	}
	if cached := c.CachedMessages(id); len(cached) != 1 || cached[0].Content != "page 1" {
		t.Errorf("cached after page 2 = %+v, want page 1 copy intact", cached)
	}
}

func TestDeleteSessionDropsLocalCopy(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			json.NewEncoder(w).Encode(Turn{
				ChatID:   id.String(),
				Messages: []*session.Message{{Role: session.RoleUser, Content: "Hello"}},
			})
		case http.MethodDelete:
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "u1", WithLogger(discardLogger()))
	if _, err := c.SendMessage(context.Background(), id, "Hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(c.CachedMessages(id)) == 0 {
		t.Fatal("expected local copy before delete")
	}

	if err := c.DeleteSession(context.Background(), id); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if got := c.CachedMessages(id); len(got) != 0 {
		t.Errorf("CachedMessages after delete = %+v, want empty", got)
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/stats/cache" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hitRate":   "75.00%",
			"hits":      3,
			"misses":    1,
			"redisInfo": map[string]string{"redis_version": "7.2.0"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "u1", WithLogger(discardLogger()))
	stats, err := c.CacheStats(context.Background())
	if err != nil {
		t.Fatalf("CacheStats() error = %v", err)
	}
	if stats.HitRate != "75.00%" {
		t.Errorf("HitRate = %q, want %q", stats.HitRate, "75.00%")
	}
	if stats.Hits != 3 || stats.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 3/1", stats.Hits, stats.Misses)
	}
	if stats.RedisInfo["redis_version"] != "7.2.0" {
		t.Errorf("RedisInfo = %+v", stats.RedisInfo)
	}
}
