package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 的幂等性存储，适用于多副本部署.
//
// 结果与占位使用两个键: {prefix}{key} 与 {prefix}lock:{key}.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption Redis 存储配置选项.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix 设置键前缀，默认 idempotency:.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore 创建 Redis 存储.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &RedisStore{client: client, keyPrefix: "idempotency:"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) resultKey(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) claimKey(key string) string {
	return s.keyPrefix + "lock:" + key
}

// Get 获取幂等键对应的结果.
func (s *RedisStore) Get(ctx context.Context, key string) (*Result, error) {
	data, err := s.client.Get(ctx, s.resultKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeResult(data)
}

// Set 保存结果并释放占位.
func (s *RedisStore) Set(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	data, err := result.Encode()
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.resultKey(key), data, ttl)
		pipe.Del(ctx, s.claimKey(key))
		return nil
	})
	return err
}

// SetNX 占位.
func (s *RedisStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	exists, err := s.client.Exists(ctx, s.resultKey(key)).Result()
	if err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}
	return s.client.SetNX(ctx, s.claimKey(key), "1", ttl).Result()
}

// Delete 删除结果与占位.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.resultKey(key), s.claimKey(key)).Err()
}
