// Package cache는 나이 기반으로 만료되는 제네릭 인메모리 캐시를 제공합니다.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// TTL은 키별로 조회 시각을 저장하고 ttl이 지나면 다시 가져오는 캐시입니다.
// 외부 규칙 변경 신호를 받으면 Invalidate로 즉시 무효화할 수 있습니다.
type TTL[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[K]entry[V]
}

// Option은 캐시 생성 옵션입니다
type Option[K comparable, V any] func(*TTL[K, V])

// WithClock은 테스트용 시계를 주입합니다
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *TTL[K, V]) {
		c.now = now
	}
}

// NewTTL은 새로운 TTL 캐시를 생성합니다
func NewTTL[K comparable, V any](ttl time.Duration, opts ...Option[K, V]) *TTL[K, V] {
	c := &TTL[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get은 만료되지 않은 값을 반환합니다
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set은 현재 시각으로 값을 저장합니다
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, fetchedAt: c.now()}
}

// GetOrFetch는 캐시 미스 또는 만료 시 fetch를 한 번 호출해 결과를 저장합니다.
// fetch 에러는 저장하지 않고 그대로 반환합니다.
func (c *TTL[K, V]) GetOrFetch(ctx context.Context, key K, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Invalidate는 키를 즉시 무효화합니다
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge는 모든 항목을 제거합니다
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len은 저장된 항목 수를 반환합니다 (만료 여부 무관)
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
