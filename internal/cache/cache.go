// Package cache is a tiered TTL cache for finished search results:
// L1 in-memory, L2 Redis. L1 is fast but lost on restart; L2 survives
// restarts and is shared between instances. Redis being down degrades the
// cache to L1-only, never to an error.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "yif:"

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache stores opaque payload bytes under derived keys with a fixed TTL.
// Last-writer-wins on Set; entries are derived data, never authoritative.
type Cache struct {
	mu         sync.Mutex
	l1         map[string]entry
	rdb        *redis.Client // nil when L2 is disabled
	ttl        time.Duration
	maxEntries int
	stopCh     chan struct{}
	stopOnce   sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache with the given TTL. redisURL may be empty to run
// L1-only. A non-positive TTL is a programming error, not a runtime state.
func New(redisURL string, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		panic(fmt.Sprintf("cache: non-positive ttl %v", ttl))
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{
		l1:         make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	go c.cleanupLoop()
	return c
}

// Key builds a deterministic cache key from ordered parts. Callers pass a
// stable serialization (fixed field order) so equal queries collide.
func Key(parts ...string) string {
	joined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

// Get tries L1, then L2. On an L2 hit the entry is copied back into L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	e, ok := c.l1[key]
	if ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		c.hits.Add(1)
		return e.data, true
	}
	if ok {
		delete(c.l1, key)
	}
	c.mu.Unlock()

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.setL1(key, data)
			c.hits.Add(1)
			return data, true
		}
		if err != redis.Nil {
			slog.Warn("cache: L2 get failed", slog.Any("error", err))
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores the payload in both tiers with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	c.setL1(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Invalidate removes a single key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.l1, key)
	c.mu.Unlock()
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			slog.Warn("cache: L2 del failed", slog.Any("error", err))
		}
	}
}

// Flush drops every cached search result.
func (c *Cache) Flush(ctx context.Context) {
	c.mu.Lock()
	c.l1 = make(map[string]entry)
	c.mu.Unlock()

	if c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				slog.Warn("cache: L2 flush del failed", slog.Any("error", err))
			}
		}
		if err := iter.Err(); err != nil {
			slog.Warn("cache: L2 flush scan failed", slog.Any("error", err))
		}
	}
}

// Stats returns hit/miss counters since startup.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the janitor and the Redis connection.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			slog.Warn("cache: redis close failed", slog.Any("error", err))
		}
	}
}

func (c *Cache) setL1(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.l1) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.l1[key] = entry{data: data, expiresAt: time.Now().Add(c.ttl)}
}

// evictOldestLocked drops the entry closest to expiry. Called with the
// lock held when the map is full.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.l1 {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey = k
			oldest = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.l1, oldestKey)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.l1 {
				if now.After(e.expiresAt) {
					delete(c.l1, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
