package scheduler

import (
	"context"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
)

// Option 调度器配置选项.
type Option func(*options)

type options struct {
	logger         logger.Logger
	locker         TryLocker
	lockPrefix     string
	metrics        *metrics.PrometheusCollector
	onError        func(ctx context.Context, run *Run)
	onSkip         func(ctx context.Context, run *Run)
	defaultTimeout time.Duration
	withSeconds    bool
	location       *time.Location
}

func defaultOptions() *options {
	return &options{
		logger:         logger.NewNop(),
		lockPrefix:     "scheduler:",
		defaultTimeout: 5 * time.Minute,
		withSeconds:    true,
		location:       time.Local,
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

// WithLocker 设置分布式锁，配合 Job.Distributed 使用.
//
// 锁键为 lockPrefix + 任务名，锁的有效期由 Locker 自身决定，应大于任务最长执行时间.
func WithLocker(l TryLocker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithLockPrefix 设置分布式锁键前缀，默认 "scheduler:".
func WithLockPrefix(prefix string) Option {
	return func(o *options) {
		o.lockPrefix = prefix
	}
}

// WithMetrics 记录任务执行次数与耗时.
func WithMetrics(collector *metrics.PrometheusCollector) Option {
	return func(o *options) {
		o.metrics = collector
	}
}

// WithOnError 任务最终失败时回调.
func WithOnError(fn func(ctx context.Context, run *Run)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithOnSkip 任务被跳过时回调.
func WithOnSkip(fn func(ctx context.Context, run *Run)) Option {
	return func(o *options) {
		o.onSkip = fn
	}
}

// WithDefaultTimeout 未指定超时的任务使用的超时，默认 5 分钟.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.defaultTimeout = d
	}
}

// WithSeconds 是否使用秒级表达式（秒 分 时 日 月 周），默认启用.
func WithSeconds(enabled bool) Option {
	return func(o *options) {
		o.withSeconds = enabled
	}
}

// WithLocation 设置时区，默认 time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}
