package gateway

import (
	"container/list"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altai-labs/magellan/internal/circuitbreaker"
	"github.com/altai-labs/magellan/internal/metrics"
)

// ResponseCache defines cache operations for normalized provider payloads.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, payload string, ttl time.Duration)
}

// LocalLRU is an in-process LRU with per-entry TTL.
type LocalLRU struct {
	mu   sync.Mutex
	cap  int
	list *list.List               // front = most recent
	m    map[string]*list.Element // key -> element
}

type lruEntry struct {
	key     string
	payload string
	exp     time.Time
}

// NewLocalLRU creates a local cache holding up to capacity entries.
func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LocalLRU{cap: capacity, list: list.New(), m: make(map[string]*list.Element, capacity)}
}

func (l *LocalLRU) Get(_ context.Context, key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		ent := el.Value.(lruEntry)
		if ent.exp.After(time.Now()) {
			l.list.MoveToFront(el)
			return ent.payload, true
		}
		// expired: remove
		l.list.Remove(el)
		delete(l.m, key)
		metrics.CacheSize.Set(float64(l.list.Len()))
	}
	return "", false
}

func (l *LocalLRU) Set(_ context.Context, key string, payload string, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		el.Value = lruEntry{key: key, payload: payload, exp: time.Now().Add(ttl)}
		l.list.MoveToFront(el)
		return
	}
	el := l.list.PushFront(lruEntry{key: key, payload: payload, exp: time.Now().Add(ttl)})
	l.m[key] = el
	if l.list.Len() > l.cap {
		lru := l.list.Back()
		if lru != nil {
			ent := lru.Value.(lruEntry)
			delete(l.m, ent.key)
			l.list.Remove(lru)
			metrics.CacheEvictions.Inc()
		}
	}
	metrics.CacheSize.Set(float64(l.list.Len()))
}

// Len returns the number of live entries, expired ones included.
func (l *LocalLRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}

// RedisCache is the shared cache tier. Every operation runs through a
// circuit breaker so a struggling Redis degrades to cache misses instead
// of stalling invocations.
type RedisCache struct {
	cli     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewRedisCache connects to Redis and verifies the connection. A nil
// breaker disables the guard.
func NewRedisCache(addr, password string, db int, breaker *circuitbreaker.CircuitBreaker) (*RedisCache, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{cli: cli, breaker: breaker}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	var payload string
	found := false
	op := func() error {
		v, err := r.cli.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// A miss is not a Redis failure.
			return nil
		}
		if err != nil {
			return err
		}
		payload = v
		found = true
		return nil
	}
	if err := r.execute(ctx, op); err != nil {
		return "", false
	}
	return payload, found
}

func (r *RedisCache) Set(ctx context.Context, key string, payload string, ttl time.Duration) {
	_ = r.execute(ctx, func() error {
		return r.cli.Set(ctx, key, payload, ttl).Err()
	})
}

func (r *RedisCache) execute(ctx context.Context, op func() error) error {
	if r.breaker == nil {
		return op()
	}
	return r.breaker.Execute(ctx, op)
}

// Close releases the underlying Redis connection.
func (r *RedisCache) Close() error {
	return r.cli.Close()
}

// Client exposes the underlying connection for health checks.
func (r *RedisCache) Client() *redis.Client {
	return r.cli
}

// MakeKey builds a deterministic cache key from a provider id and its
// arguments. Argument order never changes the key.
func MakeKey(provider string, args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(provider)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(args[k])
	}
	h := md5.Sum([]byte(sb.String()))
	return "gw:" + hex.EncodeToString(h[:])
}
