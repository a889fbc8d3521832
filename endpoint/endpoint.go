// Package endpoint 提供传输无关的端点抽象和中间件链.
package endpoint

import (
	"context"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// Endpoint 表示单个业务操作.
type Endpoint func(ctx context.Context, request any) (response any, err error)

// Middleware Endpoint 中间件.
type Middleware func(Endpoint) Endpoint

// Chain 将多个中间件链接在一起，outer 最先执行.
func Chain(outer Middleware, others ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(others) - 1; i >= 0; i-- {
			next = others[i](next)
		}
		return outer(next)
	}
}

// LoggingMiddleware 记录操作耗时与错误.
func LoggingMiddleware(log logger.Logger, operation string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, request)

			l := log.WithContext(ctx).With(
				logger.String("operation", operation),
				logger.Duration("duration", time.Since(start)),
			)
			if err != nil {
				l.With(logger.Err(err)).Warn("[Endpoint] 请求失败")
			} else {
				l.Debug("[Endpoint] 请求完成")
			}
			return resp, err
		}
	}
}
