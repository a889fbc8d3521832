package endpoint

import (
	"context"
	"time"
)

// TimeoutMiddleware 为端点设置截止时间，父 context 剩余时间更短时沿用父 context.
//
// 端点需自行响应 ctx 取消，超时后返回 context.DeadlineExceeded.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Endpoint) Endpoint {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request any) (any, error) {
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
				return next(ctx, request)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, request)
		}
	}
}
