package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache holds serialized read models. A miss is (nil, false, nil).
//
// Every key carries a generation that Delete bumps. A reader takes the
// generation before computing a value and stores it with SetIfGeneration, so a
// Delete that lands in between wins.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

const (
	keyPrefix = "claims:"
	genPrefix = "claims:gen:"
)

var errStaleGeneration = errors.New("cache generation moved")

// RedisCache stores entries in Redis under the "claims:" prefix.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache { return &RedisCache{client: client} }

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, keyPrefix+key, val, ttl).Err()
}

func (r *RedisCache) Generation(ctx context.Context, key string) (int64, error) {
	return redisGeneration(ctx, r.client, key)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func redisGeneration(ctx context.Context, c getter, key string) (int64, error) {
	gen, err := c.Get(ctx, genPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfGeneration writes under WATCH on the generation key; a concurrent Delete aborts the write.
func (r *RedisCache) SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := redisGeneration(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, keyPrefix+key, val, ttl)
			return nil
		})
		return err
	}, genPrefix+key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return false, nil
	}
	return false, err
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Del(ctx, keyPrefix+k)
			p.Incr(ctx, genPrefix+k)
		}
		return nil
	})
	return err
}

// MemoryCache is a process-local Cache for single-instance deployments and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	gens    map[string]int64
	now     func() time.Time
}

type memEntry struct {
	val     []byte
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memEntry{}, gens: map[string]int64{}, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, val, ttl)
	return nil
}

func (m *MemoryCache) put(key string, val []byte, ttl time.Duration) {
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
}

func (m *MemoryCache) Generation(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[key], nil
}

func (m *MemoryCache) SetIfGeneration(_ context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[key] != gen {
		return false, nil
	}
	m.put(key, val, ttl)
	return true, nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
		m.gens[k]++
	}
	return nil
}
