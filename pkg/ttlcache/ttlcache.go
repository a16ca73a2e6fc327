// Package ttlcache 提供进程内 read-through TTL 缓存，带 single-flight 合并回源
package ttlcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache 泛型 TTL 缓存。过期采用读取时惰性判断，不做后台清理。
// 同一 key 并发回源通过 single-flight 合并为一次加载，
// 所有等待者共享同一结果或同一错误；错误不会被缓存。
type Cache[V any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[V]

	onHit  func()
	onMiss func()
}

// Option 缓存可选配置
type Option[V any] func(*Cache[V])

// WithClock 注入时钟，测试用
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// WithHitMissHooks 注入命中/未命中回调，用于指标上报
func WithHitMissHooks[V any](onHit, onMiss func()) Option[V] {
	return func(c *Cache[V]) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

// New 创建缓存实例
func New[V any](ttl time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 读取缓存；未命中或已过期时调用 loader 回源并写入缓存
func (c *Cache[V]) Get(ctx context.Context, key string, loader func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		if c.onHit != nil {
			c.onHit()
		}
		return v, nil
	}
	if c.onMiss != nil {
		c.onMiss()
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// 回源前复查：等待期间可能已有一次加载完成
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Peek 只读缓存，不触发回源
func (c *Cache[V]) Peek(key string) (V, bool) {
	return c.lookup(key)
}

// Len 当前条目数（含已过期未清理的条目）
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) store(key string, v V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
