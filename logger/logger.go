// Package logger 是基于 zap 的结构化日志. 编排器与参与方的日志都带 [组件] 前缀，
// 按 Saga 聚合时使用 SagaID、OrderID 等同名字段.
package logger

import "context"

// Logger 日志接口. Fatal 系列在写出后退出进程.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)

	With(fields ...Field) Logger
	// WithContext 附带 ctx 中的 traceId 与 spanId，没有时返回自身.
	WithContext(ctx context.Context) Logger

	Sync() error
	Close() error
}

// NewLogger 按配置创建 zap 实现.
func NewLogger(cfg *Config) (Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return newZapLogger(cfg)
}

type ctxKey int

const (
	// TraceIDKey ctx 中 traceId 的键，由 tracing.HTTPMiddleware 写入.
	TraceIDKey ctxKey = iota
	// SpanIDKey ctx 中 spanId 的键.
	SpanIDKey
)

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, SpanIDKey, spanID)
}
