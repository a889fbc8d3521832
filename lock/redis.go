package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tsukikage7/saga-orchestrator/cache"
)

// Redis 基于 Redis 的分布式锁.
//
// 使用 SET NX PX 获取锁，Lua 脚本比较持有者后删除，保证只有持有者能释放.
// 同一进程内的竞争先经过本地 Keyed，避免多个协程轮询 Redis.
type Redis struct {
	cache      cache.Cache
	local      *Keyed
	keyPrefix  string
	ownerID    string
	ttl        time.Duration
	retryWait  time.Duration
	maxRetries int

	mu   sync.Mutex
	held map[string]string // key -> token
}

// RedisOption Redis 锁配置选项.
type RedisOption func(*Redis)

// WithKeyPrefix 设置锁键前缀，默认 "saga:lock:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.keyPrefix = prefix
	}
}

// WithOwnerID 设置锁持有者 ID，默认自动生成 UUID.
func WithOwnerID(id string) RedisOption {
	return func(r *Redis) {
		r.ownerID = id
	}
}

// WithTTL 设置锁过期时间，默认 30 秒.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRetryWait 设置获取锁失败时的重试间隔，默认 50ms.
func WithRetryWait(wait time.Duration) RedisOption {
	return func(r *Redis) {
		if wait > 0 {
			r.retryWait = wait
		}
	}
}

// WithMaxRetries 设置最大重试次数，0 表示一直重试直到 ctx 取消.
func WithMaxRetries(n int) RedisOption {
	return func(r *Redis) {
		r.maxRetries = n
	}
}

// NewRedis 创建 Redis 分布式锁.
func NewRedis(c cache.Cache, opts ...RedisOption) (*Redis, error) {
	if c == nil {
		return nil, ErrNilCache
	}

	r := &Redis{
		cache:     c,
		local:     NewKeyed(),
		keyPrefix: "saga:lock:",
		ownerID:   uuid.NewString(),
		ttl:       30 * time.Second,
		retryWait: 50 * time.Millisecond,
		held:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// token 每次加锁使用 ownerID + 随机后缀，同一实例的过期锁不会被误删.
func (r *Redis) token() string {
	return r.ownerID + ":" + uuid.NewString()
}

// TryLock 尝试获取锁.
func (r *Redis) TryLock(ctx context.Context, key string) (bool, error) {
	token := r.token()
	acquired, err := r.cache.TryLock(ctx, r.keyPrefix+key, token, r.ttl)
	if err != nil {
		return false, err
	}
	if acquired {
		r.mu.Lock()
		r.held[key] = token
		r.mu.Unlock()
	}
	return acquired, nil
}

// Lock 阻塞获取锁，直到成功、重试耗尽或 ctx 取消.
func (r *Redis) Lock(ctx context.Context, key string) error {
	retries := 0
	for {
		acquired, err := r.TryLock(ctx, key)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		retries++
		if r.maxRetries > 0 && retries >= r.maxRetries {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryWait):
		}
	}
}

// Unlock 释放锁.
func (r *Redis) Unlock(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.held[key]
	delete(r.held, key)
	r.mu.Unlock()
	if !ok {
		return ErrLockNotHeld
	}

	if err := r.cache.Unlock(ctx, r.keyPrefix+key, token); err != nil {
		if errors.Is(err, cache.ErrLockNotHeld) {
			return ErrLockExpired
		}
		return err
	}
	return nil
}

// WithLock 持有 key 对应的锁执行 fn.
//
// 锁在 fn 执行期间过期时，释放阶段返回 ErrLockExpired，fn 的错误优先返回.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return r.local.WithLock(ctx, key, func(ctx context.Context) error {
		if err := r.Lock(ctx, key); err != nil {
			return err
		}
		fnErr := fn(ctx)
		unlockErr := r.Unlock(context.WithoutCancel(ctx), key)
		if fnErr != nil {
			return fnErr
		}
		return unlockErr
	})
}

// OwnerID 返回锁持有者 ID.
func (r *Redis) OwnerID() string {
	return r.ownerID
}

// IsHeld 是否持有指定的锁.
func (r *Redis) IsHeld(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[key]
	return ok
}
