package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the byte-oriented cache contract shared by the executor's provider
// and ranked-list caches. Implementations must keep write-once semantics per
// key-and-TTL window: concurrent readers of an unexpired key see one value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// MemoryStore adapts the in-process LRU to the Store interface.
type MemoryStore struct {
	lru *LRU[string, []byte]
}

// NewMemoryStore creates an in-process store with the given bounds.
func NewMemoryStore(capacity int, defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{lru: NewLRU[string, []byte](capacity, defaultTTL)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.lru.Set(key, value, ttl)
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.lru.Delete(key)
}

// Len reports the current entry count.
func (s *MemoryStore) Len() int { return s.lru.Len() }

// RedisStore serves the same key schema from a shared redis, for deployments
// running more than one search process. TTLs are enforced server-side.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing redis client. keyPrefix namespaces this
// service's keys ("citypulse:" by default).
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "citypulse:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Get implements Store. Transport errors degrade to a miss: the caller falls
// through to the provider path.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set implements Store. Errors are dropped; a failed cache write never fails
// a search.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	_ = s.client.Del(ctx, s.keyPrefix+key).Err()
}
