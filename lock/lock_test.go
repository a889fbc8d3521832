package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Tsukikage7/saga-orchestrator/cache"
	"github.com/Tsukikage7/saga-orchestrator/logger"
)

func TestKeyed_MutualExclusion(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyed()
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = k.WithLock(context.Background(), "saga-1", func(context.Context) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, k.Len(), "entries should be reclaimed")
}

func TestKeyed_DifferentKeysRunInParallel(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyed()
	release := make(chan struct{})
	entered := make(chan string, 2)

	var wg sync.WaitGroup
	for _, key := range []string{"saga-a", "saga-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = k.WithLock(context.Background(), key, func(context.Context) error {
				entered <- key
				<-release
				return nil
			})
		}()
	}

	for range 2 {
		select {
		case <-entered:
		case <-time.After(time.Second):
			t.Fatal("different keys must not block each other")
		}
	}
	close(release)
	wg.Wait()
}

func TestKeyed_ContextCanceledWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyed()
	unlock, err := k.Lock(context.Background(), "saga-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err = k.WithLock(ctx, "saga-1", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	unlock()
	unlock()
	assert.Equal(t, 0, k.Len())
}

func TestKeyed_PropagatesError(t *testing.T) {
	k := NewKeyed()
	want := errors.New("store failed")
	err := k.WithLock(context.Background(), "k", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func newTestRedis(t *testing.T, opts ...RedisOption) (*Redis, cache.Cache) {
	t.Helper()
	c, err := cache.NewMemoryCache(nil, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	r, err := NewRedis(c, opts...)
	require.NoError(t, err)
	return r, c
}

func TestRedis_TryLockAndUnlock(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	ok, err := r.TryLock(ctx, "saga-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, r.IsHeld("saga-1"))

	other, _ := NewRedis(r.cache)
	ok, err = other.TryLock(ctx, "saga-1")
	require.NoError(t, err)
	assert.False(t, ok, "another owner must not acquire a held lock")

	require.NoError(t, r.Unlock(ctx, "saga-1"))
	assert.False(t, r.IsHeld("saga-1"))
	assert.ErrorIs(t, r.Unlock(ctx, "saga-1"), ErrLockNotHeld)
}

func TestRedis_LockMaxRetries(t *testing.T) {
	r, c := newTestRedis(t, WithMaxRetries(2), WithRetryWait(time.Millisecond))
	ctx := context.Background()

	_, err := c.SetNX(ctx, "saga:lock:busy", "someone-else", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Lock(ctx, "busy"), ErrLockNotAcquired)
}

func TestRedis_ExpiredLock(t *testing.T) {
	r, _ := newTestRedis(t, WithTTL(10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, r.Lock(ctx, "saga-1"))
	time.Sleep(30 * time.Millisecond)
	assert.ErrorIs(t, r.Unlock(ctx, "saga-1"), ErrLockExpired)
}

func TestRedis_WithLock(t *testing.T) {
	r, c := newTestRedis(t, WithKeyPrefix("test:"))
	ctx := context.Background()

	var (
		counter int
		wg      sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.WithLock(ctx, "saga-1", func(ctx context.Context) error {
				held, _ := c.Exists(ctx, "test:saga-1")
				if !held {
					return errors.New("redis key not held inside WithLock")
				}
				counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, counter)
	held, _ := c.Exists(ctx, "test:saga-1")
	assert.False(t, held)
}

func TestNewRedis_NilCache(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, ErrNilCache)
}
