package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCacheStore(client redis.UniversalClient, prefix string) *RedisCacheStore {
	if prefix == "" {
		prefix = "geo_lookup_cache"
	}
	return &RedisCacheStore{client: client, prefix: prefix}
}

func (s *RedisCacheStore) Get(ctx context.Context, ip string) (LookupResult, bool, error) {
	if s.client == nil {
		return LookupResult{}, false, nil
	}
	raw, err := s.client.Get(ctx, s.key(ip)).Bytes()
	if errors.Is(err, redis.Nil) {
		return LookupResult{}, false, nil
	}
	if err != nil {
		return LookupResult{}, false, err
	}
	var res LookupResult
	if err := json.Unmarshal(raw, &res); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = s.client.Del(ctx, s.key(ip)).Err()
		return LookupResult{}, false, nil
	}
	return res, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, ip string, res LookupResult, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(ip), payload, ttl).Err()
}

func (s *RedisCacheStore) Invalidate(ctx context.Context, ip string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(ip)).Err()
}

func (s *RedisCacheStore) key(ip string) string {
	return fmt.Sprintf("%s:ip:%s", s.prefix, normalizeIP(ip))
}
