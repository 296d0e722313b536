package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache 进程内定时过期缓存
// Delete 会推进键的版本号，加载期间被删除的结果不会回填
type TTLCache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	items    map[string]ttlEntry[V]
	versions map[string]uint64
}

// NewTTLCache 创建缓存，ttl<=0 时不缓存
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]ttlEntry[V]),
		versions: make(map[string]uint64),
	}
}

// SetClock 替换时钟，测试使用
func (c *TTLCache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	c.now = now
}

// Get 读取未过期的值
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Load 命中则返回缓存，否则调用 loader 并在版本未变化时回填
func (c *TTLCache[V]) Load(key string, loader func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	c.mu.Lock()
	version := c.versions[key]
	c.mu.Unlock()

	value, err := loader()
	if err != nil {
		return value, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl > 0 && c.versions[key] == version {
		c.items[key] = ttlEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	}
	return value, nil
}

// Delete 同步删除键，返回后后续读取必然重新加载
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.versions[key]++
}
