package saga

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Tsukikage7/saga-orchestrator/lock"
	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
)

// SideEffect 参与方已确认发生但未被记录的远程副作用.
type SideEffect struct {
	SagaID     string
	OrderID    string
	Step       StepName
	CustomerID string
	Amount     float64
	Items      []OrderItem
	Data       *ReplyData
}

// SideEffectRecorder 在参与方存储中补录远程副作用.
//
// EnsureRecorded 必须幂等: 记录已存在时直接返回其 ID.
type SideEffectRecorder interface {
	EnsureRecorded(ctx context.Context, effect SideEffect) (string, error)
}

// Option 配置选项函数.
type Option func(*options)

type options struct {
	logger         logger.Logger
	locker         lock.Locker
	recorders      map[StepName]SideEffectRecorder
	metrics        *sagaMetrics
	clock          func() time.Time
	idGen          func() string
	publishRetries uint
	publishDelay   time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:         logger.NewNop(),
		locker:         lock.NewKeyed(),
		recorders:      make(map[StepName]SideEffectRecorder),
		clock:          time.Now,
		idGen:          uuid.NewString,
		publishRetries: 3,
		publishDelay:   100 * time.Millisecond,
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithLocker 设置按 sagaId 互斥的锁，默认进程内 lock.Keyed.
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithSideEffectRecorder 为步骤设置副作用补录器.
//
// 未设置时，带 remoteSideEffectConfirmed 的失败回复按普通失败处理.
func WithSideEffectRecorder(step StepName, r SideEffectRecorder) Option {
	return func(o *options) {
		o.recorders[step] = r
	}
}

// WithMetrics 启用 Saga 指标.
func WithMetrics(collector *metrics.PrometheusCollector) Option {
	return func(o *options) {
		if collector != nil {
			o.metrics = newSagaMetrics(collector)
		}
	}
}

// WithClock 设置时钟，测试中用于固定时间.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithIDGenerator 设置 sagaId/orderId 生成器，默认 UUID.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		o.idGen = gen
	}
}

// WithPublishRetry 设置命令发送的重试次数与间隔.
//
// attempts 为总尝试次数，默认 3 次、间隔 100ms 指数退避.
func WithPublishRetry(attempts uint, delay time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.publishRetries = attempts
		}
		o.publishDelay = delay
	}
}
