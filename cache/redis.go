package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// unlockScript 只有当锁的值匹配时才删除.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// redisCache Redis 缓存实现.
type redisCache struct {
	client *redis.Client
	config *Config
	logger logger.Logger
}

// NewRedisCache 创建 Redis 缓存并检测连接.
func NewRedisCache(config *Config, log logger.Logger) (Cache, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if config.Addr == "" {
		return nil, ErrEmptyAddr
	}
	config.ApplyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		MaxRetries:   config.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Errorf("[Cache] Redis 连接失败: addr=%s, err=%v", config.Addr, err)
		return nil, fmt.Errorf("cache: redis 连接失败: %w", err)
	}

	log.Debugf("[Cache] Redis 已连接: addr=%s, db=%d", config.Addr, config.DB)
	return &redisCache{client: client, config: config, logger: log}, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Errorf("[Cache] SET 失败: key=%s, err=%v", key, err)
		return err
	}
	return nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		r.logger.Errorf("[Cache] GET 失败: key=%s, err=%v", key, err)
		return "", err
	}
	return result, nil
}

func (r *redisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisCache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		r.logger.Errorf("[Cache] SETNX 失败: key=%s, err=%v", key, err)
		return false, err
	}
	return ok, nil
}

func (r *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *redisCache) TryLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return r.SetNX(ctx, key, value, ttl)
}

func (r *redisCache) Unlock(ctx context.Context, key string, value string) error {
	n, err := unlockScript.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		r.logger.Errorf("[Cache] 释放锁失败: key=%s, err=%v", key, err)
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
