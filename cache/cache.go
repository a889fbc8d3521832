// Package cache 提供键值缓存抽象，Redis 锁基于它实现.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// 缓存类型常量.
const (
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

// 默认配置值.
const (
	DefaultPoolSize     = 10
	DefaultTimeout      = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultMaxRetries   = 3
)

// 常见错误.
var (
	ErrNotFound    = errors.New("cache: 缓存键不存在")
	ErrLockNotHeld = errors.New("cache: 锁未持有或已过期")
	ErrNilConfig   = errors.New("cache: 缓存配置为空")
	ErrEmptyAddr   = errors.New("cache: 缓存地址为空")
	ErrUnsupported = errors.New("cache: 不支持的缓存类型")
	ErrNilLogger   = errors.New("cache: 日志记录器为空")
)

// Cache 缓存接口.
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TryLock 以 value 作为持有者标识尝试加锁.
	TryLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// Unlock 仅当 key 的值等于 value 时删除，否则返回 ErrLockNotHeld.
	Unlock(ctx context.Context, key string, value string) error

	Ping(ctx context.Context) error
	Close() error
}

// New 按配置类型创建缓存实例，log 不能为 nil.
func New(config *Config, log logger.Logger) (Cache, error) {
	if log == nil {
		return nil, ErrNilLogger
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	switch config.Type {
	case TypeRedis:
		return NewRedisCache(config, log)
	case TypeMemory:
		return NewMemoryCache(config, log)
	default:
		return nil, ErrUnsupported
	}
}
