package geo

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/session-console/internal/observability"
)

// CacheStore keeps successful lookups per IP so each distinct address hits
// the provider once per TTL.
type CacheStore interface {
	Get(ctx context.Context, ip string) (LookupResult, bool, error)
	Set(ctx context.Context, ip string, res LookupResult, ttl time.Duration) error
	Invalidate(ctx context.Context, ip string) error
}

type NoopCacheStore struct{}

func NewNoopCacheStore() *NoopCacheStore { return &NoopCacheStore{} }

func (s *NoopCacheStore) Get(context.Context, string) (LookupResult, bool, error) {
	return LookupResult{}, false, nil
}

func (s *NoopCacheStore) Set(context.Context, string, LookupResult, time.Duration) error {
	return nil
}

func (s *NoopCacheStore) Invalidate(context.Context, string) error { return nil }

type cacheEntry struct {
	result    LookupResult
	expiresAt time.Time
}

type InMemoryCacheStore struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{store: make(map[string]cacheEntry)}
}

func (s *InMemoryCacheStore) Get(_ context.Context, ip string) (LookupResult, bool, error) {
	key := normalizeIP(ip)
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[key]
	s.mu.RUnlock()
	if !ok {
		return LookupResult{}, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if cur, ok2 := s.store[key]; ok2 && cur.expiresAt.Equal(entry.expiresAt) {
			delete(s.store, key)
		}
		s.mu.Unlock()
		return LookupResult{}, false, nil
	}
	return entry.result, true, nil
}

func (s *InMemoryCacheStore) Set(_ context.Context, ip string, res LookupResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[normalizeIP(ip)] = cacheEntry{result: res, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *InMemoryCacheStore) Invalidate(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, normalizeIP(ip))
	return nil
}

func normalizeIP(ip string) string {
	return strings.ToLower(strings.TrimSpace(ip))
}

// Lookuper is anything that answers a lookup like Client does.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (Response, error)
}

// CachedClient serves repeated lookups from a CacheStore. Failed lookups are
// never cached, and cache errors only cost a provider call.
type CachedClient struct {
	next   Lookuper
	store  CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedClient(next Lookuper, store CacheStore, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if store == nil {
		store = NewNoopCacheStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachedClient) Lookup(ctx context.Context, ip string) (Response, error) {
	if c.ttl > 0 {
		res, ok, err := c.store.Get(ctx, ip)
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "geo cache read failed", "error", err)
			observability.RecordGeoCache(ctx, "error")
		case ok:
			observability.RecordGeoCache(ctx, "hit")
			return ResponseFor(ip, res), nil
		default:
			observability.RecordGeoCache(ctx, "miss")
		}
	}

	resp, err := c.next.Lookup(ctx, ip)
	if err != nil || !resp.Success {
		return resp, err
	}
	if c.ttl > 0 {
		if err := c.store.Set(ctx, ip, resp.Result(), c.ttl); err != nil {
			c.logger.WarnContext(ctx, "geo cache write failed", "error", err)
		}
	}
	return resp, nil
}
