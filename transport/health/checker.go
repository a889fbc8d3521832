package health

import (
	"context"
	"errors"
)

// Pinger 可探活的依赖，database.DB、mongodb.Client、cache.Cache 均实现了该接口.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc 函数适配为 Pinger，例如 messaging.Client.HealthCheck.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// 依赖类型，写入检查结果的 details.type.
const (
	KindDatabase = "database"
	KindMongo    = "mongodb"
	KindRedis    = "redis"
	KindBroker   = "broker"
)

// PingChecker 通过 Ping 判断依赖是否可用.
type PingChecker struct {
	name   string
	kind   string
	pinger Pinger
}

// NewPingChecker 创建 Ping 检查器，kind 为空时不写入 details.
func NewPingChecker(name, kind string, pinger Pinger) *PingChecker {
	return &PingChecker{name: name, kind: kind, pinger: pinger}
}

func (c *PingChecker) Name() string { return c.name }

// Check 执行 Ping，超时视为 DOWN.
func (c *PingChecker) Check(ctx context.Context) CheckResult {
	var details map[string]any
	if c.kind != "" {
		details = map[string]any{"type": c.kind}
	}

	if err := c.pinger.Ping(ctx); err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "检查超时"
		}
		return CheckResult{Status: StatusDown, Message: msg, Details: details}
	}
	return CheckResult{Status: StatusUp, Details: details}
}
