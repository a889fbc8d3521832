// Package idempotency 提供消息处理的幂等控制.
//
// 至少一次投递下，同一命令可能被重复消费. 处理方先以幂等键占位，
// 处理成功后保存结果；重复消息直接复用已保存的结果.
//
// 基本用法:
//
//	ok, _ := store.SetNX(ctx, key, ttl)
//	if !ok {
//	    result, _ := store.Get(ctx, key)
//	    // result 为 nil 表示仍在处理中
//	}
//	// 执行并保存结果
//	store.Set(ctx, key, &idempotency.Result{Body: body}, ttl)
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultTTL 默认的幂等键过期时间.
const DefaultTTL = 24 * time.Hour

// ErrNilClient Redis 客户端为空.
var ErrNilClient = errors.New("idempotency: Redis 客户端为空")

// Result 已完成处理的结果.
type Result struct {
	// Status 处理结果状态，由调用方定义
	Status string `json:"status"`

	// Body 需要重放的响应内容
	Body []byte `json:"body,omitempty"`

	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Encode 将 Result 编码为字节数组.
func (r *Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult 从字节数组解码 Result.
func DecodeResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Store 幂等性存储接口.
type Store interface {
	// Get 获取幂等键对应的结果，键不存在或尚未保存结果时返回 nil, nil.
	Get(ctx context.Context, key string) (*Result, error)

	// Set 保存结果并释放占位.
	Set(ctx context.Context, key string, result *Result, ttl time.Duration) error

	// SetNX 占位，返回 false 表示已有结果或正在处理中.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Delete 删除结果与占位，之后同一键可重新处理.
	Delete(ctx context.Context, key string) error
}
