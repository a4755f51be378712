package chat

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/cache"
	"github.com/JuneJin9655/ai-chat/internal/session"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	messages map[uuid.UUID][]*session.Message

	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*session.Session),
		messages: make(map[uuid.UUID][]*session.Message),
	}
}

func (f *fakeStore) addSession(userID string) *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := &session.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     session.DefaultTitle(time.Now()),
		CreatedAt: time.Now(),
	}
	f.sessions[sess.ID] = sess
	return sess
}

func (f *fakeStore) CreateSession(_ context.Context, userID string) (*session.Session, error) {
	return f.addSession(userID), nil
}

func (f *fakeStore) Session(_ context.Context, id uuid.UUID) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (f *fakeStore) Sessions(_ context.Context, userID string) ([]*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*session.Session
	for _, sess := range f.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok || sess.UserID != userID {
		return session.ErrNotFound
	}
	delete(f.sessions, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeStore) AppendMessage(_ context.Context, sessionID uuid.UUID, role, content string) (*session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	msg := &session.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	f.messages[sessionID] = append(f.messages[sessionID], msg)
	return msg, nil
}

func (f *fakeStore) Messages(_ context.Context, sessionID uuid.UUID, page, limit int) ([]*session.Message, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[sessionID]
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeStore) History(_ context.Context, sessionID uuid.UUID) ([]*session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*session.Message(nil), f.messages[sessionID]...), nil
}

func (f *fakeStore) messageCount(sessionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[sessionID])
}

// fakeCache is an in-memory PageCache with call accounting.
type fakeCache struct {
	mu          sync.Mutex
	pages       map[string]*session.Page
	invalidates int
	promotes    int
	puts        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{pages: make(map[string]*session.Page)}
}

func (f *fakeCache) GetPage(_ context.Context, sessionID uuid.UUID, page, limit int) (*session.Page, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[key(sessionID, page, limit)]
	if !ok {
		return nil, false
	}
	copied := *p
	return &copied, true
}

func (f *fakeCache) PutPage(_ context.Context, sessionID uuid.UUID, page, limit int, p *session.Page, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	copied := *p
	f.pages[key(sessionID, page, limit)] = &copied
}

func (f *fakeCache) Invalidate(_ context.Context, sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
	prefix := "chat:" + sessionID.String()
	for k := range f.pages {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(f.pages, k)
		}
	}
}

func (f *fakeCache) Promote(_ context.Context, _ uuid.UUID, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promotes++
}

func (f *fakeCache) Stats(_ context.Context) cache.Stats {
	return cache.Stats{HitRate: "0.00%"}
}

// key mirrors the cache package's key layout for fake bookkeeping.
func key(sessionID uuid.UUID, page, limit int) string {
	return "chat:" + sessionID.String() + ":messages:p" + strconv.Itoa(page) + ":l" + strconv.Itoa(limit)
}

// fakeProvider returns a scripted reply or fragment sequence.
type fakeProvider struct {
	reply       string
	completeErr error

	fragments []string
	streamErr error // yielded after fragments when set

	mu          sync.Mutex
	lastWindow  []ProviderMessage
	streamCalls int
}

func (f *fakeProvider) Complete(_ context.Context, messages []ProviderMessage) (string, error) {
	f.mu.Lock()
	f.lastWindow = messages
	f.mu.Unlock()
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.reply, nil
}

func (f *fakeProvider) Stream(_ context.Context, messages []ProviderMessage) iter.Seq2[string, error] {
	f.mu.Lock()
	f.lastWindow = messages
	f.streamCalls++
	f.mu.Unlock()
	return func(yield func(string, error) bool) {
		for _, fragment := range f.fragments {
			if !yield(fragment, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

var errProviderDown = errors.New("model overloaded")

// newTestService wires a Service over the fakes.
func newTestService(store *fakeStore, pc *fakeCache, provider *fakeProvider) *Service {
	svc, err := New(Config{
		Store:    store,
		Cache:    pc,
		Provider: provider,
	})
	if err != nil {
		panic(err)
	}
	return svc
}
