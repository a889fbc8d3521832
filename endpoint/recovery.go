package endpoint

import (
	"context"
	"fmt"
	"runtime"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

const stackSize = 64 << 10

// PanicError 端点内发生的 panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("endpoint: panic: %v", e.Value)
}

// RecoveryMiddleware 将端点内的 panic 转为 *PanicError 并记录堆栈.
func RecoveryMiddleware(log logger.Logger, operation string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, request any) (resp any, err error) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]

				log.WithContext(ctx).With(
					logger.String("operation", operation),
					logger.Any("panic", p),
					logger.String("stack", string(stack)),
				).Error("[Endpoint] panic 已恢复")
				resp, err = nil, &PanicError{Value: p, Stack: stack}
			}()
			return next(ctx, request)
		}
	}
}
