package services

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CounterStore is the narrow contract the view pipeline needs from the
// fast store: keyed increments, an atomic read-and-delete drain, and a
// weakly consistent cursor scan. Anything with atomic get-and-clear
// semantics can stand in for Redis here.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, delta int64) error
	IncrByWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) error
	Get(ctx context.Context, key string) (int64, error)
	// Drain atomically reads and deletes a counter in one round trip.
	// A missing key drains as zero.
	Drain(ctx context.Context, key string) (int64, error)
	// Scan walks keys matching a glob pattern page by page. cursor=0
	// starts a scan; a returned cursor of 0 ends it. The walk may miss or
	// revisit keys mutated mid-scan.
	Scan(ctx context.Context, match string, cursor uint64, count int64) ([]string, uint64, error)
}

// RedisCounterStore backs CounterStore with Redis. GETDEL makes the drain
// a single atomic round trip, so no increment landing between read and
// delete can be lost.
type RedisCounterStore struct {
	Client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{Client: client}
}

func (s *RedisCounterStore) IncrBy(ctx context.Context, key string, delta int64) error {
	return s.Client.IncrBy(ctx, key, delta).Err()
}

func (s *RedisCounterStore) IncrByWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) error {
	pipe := s.Client.TxPipeline()
	pipe.IncrBy(ctx, key, delta)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	n, err := s.Client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *RedisCounterStore) Drain(ctx context.Context, key string) (int64, error) {
	n, err := s.Client.GetDel(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *RedisCounterStore) Scan(ctx context.Context, match string, cursor uint64, count int64) ([]string, uint64, error) {
	return s.Client.Scan(ctx, cursor, match, count).Result()
}

// MemoryCounterStore is an in-process CounterStore used by tests and as a
// development fallback when no Redis address is configured. TTLs are
// honored lazily on access.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
	expiry   map[string]time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]int64),
		expiry:   make(map[string]time.Time),
	}
}

func (s *MemoryCounterStore) expireLocked(key string) {
	if exp, ok := s.expiry[key]; ok && time.Now().After(exp) {
		delete(s.counters, key)
		delete(s.expiry, key)
	}
}

func (s *MemoryCounterStore) IncrBy(ctx context.Context, key string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)
	s.counters[key] += delta
	return nil
}

func (s *MemoryCounterStore) IncrByWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)
	s.counters[key] += delta
	s.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)
	return s.counters[key], nil
}

func (s *MemoryCounterStore) Drain(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)
	n := s.counters[key]
	delete(s.counters, key)
	delete(s.expiry, key)
	return n, nil
}

// Scan returns every matching key in one page; the memory store has no
// real cursor.
func (s *MemoryCounterStore) Scan(ctx context.Context, match string, cursor uint64, count int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.counters))
	for k := range s.counters {
		s.expireLocked(k)
		if _, ok := s.counters[k]; !ok {
			continue
		}
		if matched, _ := filepath.Match(match, k); matched {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, 0, nil
}
