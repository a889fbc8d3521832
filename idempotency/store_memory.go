package idempotency

import (
	"context"
	"sync"
	"time"
)

// purgeInterval 后台清理过期键的周期. 读写路径本身会忽略过期键.
const purgeInterval = time.Minute

// MemoryStore 进程内幂等存储，用于单进程部署与测试，重启后丢失.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// memoryEntry result 为 nil 时表示键已被占位、仍在处理.
type memoryEntry struct {
	result   *Result
	deadline time.Time
}

func (e memoryEntry) live(now time.Time) bool { return now.Before(e.deadline) }

// NewMemoryStore 创建存储并启动后台清理，用完需 Close.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.purgeLoop()
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.result == nil || !e.live(s.now()) {
		return nil, nil
	}
	r := *e.result
	return &r, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, result *Result, ttl time.Duration) error {
	r := *result
	s.mu.Lock()
	s.entries[key] = memoryEntry{result: &r, deadline: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && e.live(now) {
		return false, nil
	}
	s.entries[key] = memoryEntry{deadline: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close 停止后台清理，可重复调用.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) purgeLoop() {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.purge()
		}
	}
}

func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, e := range s.entries {
		if !e.live(now) {
			delete(s.entries, key)
		}
	}
}
