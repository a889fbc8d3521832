package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// memoryCache 内存缓存实现，用于单机部署与测试.
type memoryCache struct {
	data      map[string]*cacheItem
	mu        sync.Mutex
	config    *Config
	logger    logger.Logger
	closeCh   chan struct{}
	closeOnce sync.Once
}

type cacheItem struct {
	value    string
	expireAt time.Time
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expireAt.IsZero() && now.After(i.expireAt)
}

func newItem(value string, ttl time.Duration) *cacheItem {
	item := &cacheItem{value: value}
	if ttl > 0 {
		item.expireAt = time.Now().Add(ttl)
	}
	return item
}

// NewMemoryCache 创建内存缓存.
func NewMemoryCache(config *Config, log logger.Logger) (Cache, error) {
	if log == nil {
		return nil, ErrNilLogger
	}
	if config == nil {
		config = NewMemoryConfig()
	}
	config.ApplyDefaults()

	c := &memoryCache{
		data:    make(map[string]*cacheItem),
		config:  config,
		logger:  log,
		closeCh: make(chan struct{}),
	}
	go c.cleanupLoop()

	log.Debug("[Cache] 内存缓存已初始化")
	return c, nil
}

func (m *memoryCache) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, item := range m.data {
				if item.expired(now) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.closeCh:
			return
		}
	}
}

// lookup 返回未过期的缓存项，调用方需持有锁.
func (m *memoryCache) lookup(key string) (*cacheItem, bool) {
	item, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if item.expired(time.Now()) {
		delete(m.data, key)
		return nil, false
	}
	return item, true
}

func (m *memoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = newItem(value, ttl)
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	return item.value, nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok, nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.data[key] = newItem(value, ttl)
	return true, nil
}

func (m *memoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(key)
	if !ok {
		return ErrNotFound
	}
	if ttl > 0 {
		item.expireAt = time.Now().Add(ttl)
	} else {
		item.expireAt = time.Time{}
	}
	return nil
}

func (m *memoryCache) TryLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return m.SetNX(ctx, key, value, ttl)
}

func (m *memoryCache) Unlock(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(key)
	if !ok || item.value != value {
		return ErrLockNotHeld
	}
	delete(m.data, key)
	return nil
}

func (m *memoryCache) Ping(context.Context) error {
	return nil
}

func (m *memoryCache) Close() error {
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}
