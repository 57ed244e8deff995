package cache

import (
	"container/list"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	key      string
	value    []byte
	expireAt time.Time // zero means never
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process with LRU eviction.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // front is most recently used
	maxSize int
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.cleanupLoop(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	item := el.Value.(*memoryItem)
	if item.expired(mc.now()) {
		mc.remove(el)
		return nil, ErrCacheMiss
	}
	mc.lru.MoveToFront(el)
	return slices.Clone(item.value), nil
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var expireAt time.Time
	if ttl > 0 {
		expireAt = mc.now().Add(ttl)
	}
	item := &memoryItem{key: key, value: slices.Clone(value), expireAt: expireAt}

	if el, ok := mc.items[key]; ok {
		el.Value = item
		mc.lru.MoveToFront(el)
		return nil
	}
	if mc.maxSize > 0 && mc.lru.Len() >= mc.maxSize {
		mc.remove(mc.lru.Back())
	}
	mc.items[key] = mc.lru.PushFront(item)
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Keys(_ context.Context, prefix string) ([]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	out := make([]string, 0)
	for k, el := range mc.items {
		if strings.HasPrefix(k, prefix) && !el.Value.(*memoryItem).expired(now) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Len returns the number of stored entries, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Len()
}

func (mc *MemoryCache) remove(el *list.Element) {
	if el == nil {
		return
	}
	mc.lru.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}

func (mc *MemoryCache) sweep() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for _, el := range mc.items {
		if el.Value.(*memoryItem).expired(now) {
			mc.remove(el)
		}
	}
}

func (mc *MemoryCache) cleanupLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			mc.sweep()
		case <-mc.stop:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}
