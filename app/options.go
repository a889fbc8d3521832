package app

import (
	"os"
	"syscall"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

type options struct {
	name    string
	version string
	logger  logger.Logger
	hooks   *Hooks

	gracefulTimeout time.Duration
	signals         []os.Signal
	cleanups        Cleanups
}

// Option 应用选项.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		name:            "saga-orchestrator",
		version:         "dev",
		gracefulTimeout: 30 * time.Second,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name 应用名称，写入启动日志.
func Name(name string) Option {
	return func(o *options) { o.name = name }
}

// Version 应用版本.
func Version(version string) Option {
	return func(o *options) { o.version = version }
}

// Logger 日志记录器，必填.
func Logger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// SetHooks 生命周期钩子. Application 持有该指针，New 之后登记的钩子同样生效.
func SetHooks(hooks *Hooks) Option {
	return func(o *options) { o.hooks = hooks }
}

// GracefulTimeout 优雅关闭的总时限，覆盖停止服务与清理资源.
func GracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// Signals 触发优雅关闭的系统信号，默认 SIGINT 与 SIGTERM.
func Signals(signals ...os.Signal) Option {
	return func(o *options) {
		if len(signals) > 0 {
			o.signals = signals
		}
	}
}

// RegisterCleanup 登记清理任务.
func RegisterCleanup(name string, fn CleanupFunc, priority int) Option {
	return func(o *options) { o.cleanups.Add(name, priority, fn) }
}
