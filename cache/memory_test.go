package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// MemoryCacheTestSuite 内存缓存测试套件.
type MemoryCacheTestSuite struct {
	suite.Suite
	cache Cache
	ctx   context.Context
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheTestSuite))
}

func (s *MemoryCacheTestSuite) SetupTest() {
	c, err := NewMemoryCache(nil, logger.NewNop())
	s.Require().NoError(err)
	s.cache = c
	s.ctx = context.Background()
}

func (s *MemoryCacheTestSuite) TearDownTest() {
	s.cache.Close()
}

func (s *MemoryCacheTestSuite) TestSetGetDel() {
	s.NoError(s.cache.Set(s.ctx, "k", "v", 0))

	v, err := s.cache.Get(s.ctx, "k")
	s.NoError(err)
	s.Equal("v", v)

	s.NoError(s.cache.Del(s.ctx, "k"))
	_, err = s.cache.Get(s.ctx, "k")
	s.ErrorIs(err, ErrNotFound)
}

func (s *MemoryCacheTestSuite) TestExpiry() {
	s.NoError(s.cache.Set(s.ctx, "k", "v", 20*time.Millisecond))
	ok, _ := s.cache.Exists(s.ctx, "k")
	s.True(ok)

	time.Sleep(40 * time.Millisecond)
	ok, _ = s.cache.Exists(s.ctx, "k")
	s.False(ok)
}

func (s *MemoryCacheTestSuite) TestSetNX() {
	ok, err := s.cache.SetNX(s.ctx, "k", "a", time.Minute)
	s.NoError(err)
	s.True(ok)

	ok, err = s.cache.SetNX(s.ctx, "k", "b", time.Minute)
	s.NoError(err)
	s.False(ok)

	v, _ := s.cache.Get(s.ctx, "k")
	s.Equal("a", v)
}

func (s *MemoryCacheTestSuite) TestLockOwnership() {
	ok, err := s.cache.TryLock(s.ctx, "lock", "owner-1", time.Minute)
	s.NoError(err)
	s.True(ok)

	s.ErrorIs(s.cache.Unlock(s.ctx, "lock", "owner-2"), ErrLockNotHeld)
	s.NoError(s.cache.Unlock(s.ctx, "lock", "owner-1"))
	s.ErrorIs(s.cache.Unlock(s.ctx, "lock", "owner-1"), ErrLockNotHeld)
}

func (s *MemoryCacheTestSuite) TestExpire() {
	s.ErrorIs(s.cache.Expire(s.ctx, "missing", time.Second), ErrNotFound)

	s.NoError(s.cache.Set(s.ctx, "k", "v", time.Hour))
	s.NoError(s.cache.Expire(s.ctx, "k", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := s.cache.Get(s.ctx, "k")
	s.ErrorIs(err, ErrNotFound)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want error
	}{
		{"nil config", nil, ErrNilConfig},
		{"redis without addr", &Config{Type: TypeRedis}, ErrEmptyAddr},
		{"unknown type", &Config{Type: "memcached", Addr: "x"}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, logger.NewNop())
			if err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := New(NewMemoryConfig(), nil); err != ErrNilLogger {
		t.Errorf("expected ErrNilLogger, got %v", err)
	}
}
