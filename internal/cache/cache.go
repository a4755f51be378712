// Package cache provides a cache-aside layer over the session store for
// paginated message reads.
//
// Entries are keyed by (session, page, limit) and carry a popularity-adaptive
// TTL: sessions whose message count exceeds a threshold keep their pages
// cached longer. Every operation is best-effort; a cache failure is logged
// and reported as a miss, never surfaced to the caller.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

// TTL policy: pages of sessions with more than popularThreshold messages
// stay cached for popularTTL, everything else for defaultTTL.
const (
	popularThreshold = 50
	popularTTL       = 3600 * time.Second
	defaultTTL       = 300 * time.Second
)

// Backend is the key-value store interface the Cache needs. Implemented by
// RedisBackend; tests substitute an in-memory fake.
type Backend interface {
	// Get returns the value for key, reporting false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetEx stores value under key with the given TTL.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// Keys returns all keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error
	// ExpireAll resets the TTL on every given key.
	ExpireAll(ctx context.Context, keys []string, ttl time.Duration) error
	// Info returns the backend's raw INFO text.
	Info(ctx context.Context) (string, error)
}

// Stats reports cache effectiveness for the observability endpoint.
// The counters belong to one Cache instance, not the process.
type Stats struct {
	HitRate   string            `json:"hitRate"`
	Hits      int64             `json:"hits"`
	Misses    int64             `json:"misses"`
	RedisInfo map[string]string `json:"redisInfo"`
}

// Cache caches message pages with hit/miss accounting.
//
// Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	backend Backend
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache. A nil logger falls back to slog.Default().
func New(backend Backend, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: backend, logger: logger}
}

// key builds the stable cache key for one page of a session's messages.
func key(sessionID uuid.UUID, page, limit int) string {
	return fmt.Sprintf("chat:%s:messages:p%d:l%d", sessionID, page, limit)
}

// sessionPattern matches every cached page of a session, for any page/limit.
func sessionPattern(sessionID uuid.UUID) string {
	return fmt.Sprintf("chat:%s:messages:*", sessionID)
}

// GetPage looks up a cached page. A miss, an unreadable entry, and a backend
// failure all report false and count as a miss.
func (c *Cache) GetPage(ctx context.Context, sessionID uuid.UUID, page, limit int) (*session.Page, bool) {
	k := key(sessionID, page, limit)

	raw, found, err := c.backend.Get(ctx, k)
	if err != nil {
		c.misses.Add(1)
		c.logger.Error("cache read failed", "key", k, "error", err)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}

	var p session.Page
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.misses.Add(1)
		c.logger.Error("cache entry corrupt", "key", k, "error", err)
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", k)
	return &p, true
}

// PutPage stores a page. totalCount is the session's full message count and
// decides the TTL. Failures are logged and swallowed.
func (c *Cache) PutPage(ctx context.Context, sessionID uuid.UUID, page, limit int, p *session.Page, totalCount int) {
	k := key(sessionID, page, limit)

	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("cache encode failed", "key", k, "error", err)
		return
	}

	ttl := defaultTTL
	if totalCount > popularThreshold {
		ttl = popularTTL
	}

	if err := c.backend.SetEx(ctx, k, string(raw), ttl); err != nil {
		c.logger.Error("cache write failed", "key", k, "error", err)
		return
	}
	c.logger.Debug("cached page", "key", k, "ttl", ttl)
}

// Invalidate removes every cached page for a session, independent of
// page/limit. Called after every successful message append; failures never
// block the append.
func (c *Cache) Invalidate(ctx context.Context, sessionID uuid.UUID) {
	pattern := sessionPattern(sessionID)

	keys, err := c.backend.Keys(ctx, pattern)
	if err != nil {
		c.logger.Error("cache invalidation scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}

	if err := c.backend.Del(ctx, keys...); err != nil {
		c.logger.Error("cache invalidation failed", "pattern", pattern, "error", err)
		return
	}
	c.logger.Debug("invalidated cache entries", "session_id", sessionID, "count", len(keys))
}

// Promote extends the TTL of a session's already-cached pages once its
// message count crosses the popularity threshold, so they do not wait out
// their original short expiry.
func (c *Cache) Promote(ctx context.Context, sessionID uuid.UUID, messageCount int) {
	if messageCount <= popularThreshold {
		return
	}

	pattern := sessionPattern(sessionID)
	keys, err := c.backend.Keys(ctx, pattern)
	if err != nil {
		c.logger.Error("cache promotion scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}

	if err := c.backend.ExpireAll(ctx, keys, popularTTL); err != nil {
		c.logger.Error("cache promotion failed", "pattern", pattern, "error", err)
		return
	}
	c.logger.Debug("promoted cache entries", "session_id", sessionID, "count", len(keys))
}

// Stats returns this instance's hit/miss counters plus parsed backend INFO.
// An INFO failure leaves RedisInfo empty rather than failing the call.
func (c *Cache) Stats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses) * 100
	}

	info := map[string]string{}
	raw, err := c.backend.Info(ctx)
	if err != nil {
		c.logger.Error("cache info failed", "error", err)
	} else {
		info = parseInfo(raw)
	}

	return Stats{
		HitRate:   fmt.Sprintf("%.2f%%", rate),
		Hits:      hits,
		Misses:    misses,
		RedisInfo: info,
	}
}

// parseInfo turns Redis INFO output into a flat key/value map, skipping
// section headers and blank lines.
func parseInfo(info string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(info, "\r\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok || k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	return result
}
