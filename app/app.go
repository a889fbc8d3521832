// Package app 管理进程生命周期: 启动服务、监听信号、按优先级清理资源.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// ErrRunning 应用正在运行.
var ErrRunning = errors.New("app: 应用正在运行")

// Server 由 Application 管理启停的组件.
//
// Start 可以阻塞到 ctx 取消，也可以在后台运行后立即返回.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
	Addr() string
}

// Application 应用程序.
type Application struct {
	opts    *options
	servers []Server
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New 创建应用程序，未设置 logger 时 panic.
func New(opts ...Option) *Application {
	o := newOptions(opts)
	if o.logger == nil {
		panic("app: 必须设置 logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{opts: o, ctx: ctx, cancel: cancel}
}

// Use 注册服务，按注册顺序启动.
func (a *Application) Use(servers ...Server) *Application {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, servers...)
	return a
}

// AddCleanup 注册清理任务，priority 越小越先执行.
func (a *Application) AddCleanup(name string, fn CleanupFunc, priority int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts.cleanups.Add(name, priority, fn)
}

// Run 启动所有服务并阻塞到收到信号、Stop 被调用或任一服务启动失败.
//
// 服务启动失败时同样执行完整的关闭流程，并返回该错误.
func (a *Application) Run() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrRunning
	}
	a.running = true
	a.mu.Unlock()

	if err := a.opts.hooks.run(a.ctx, BeforeStart); err != nil {
		a.runCleanups(context.Background())
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return err
	}

	a.opts.logger.With(
		logger.String("name", a.opts.name),
		logger.String("version", a.opts.version),
	).Info("[App] 应用启动")

	errCh := a.start()

	if err := a.opts.hooks.run(a.ctx, AfterStart); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] 启动后钩子执行失败")
	}

	startErr := a.wait(errCh)
	if err := a.shutdown(); err != nil {
		return errors.Join(startErr, err)
	}
	return startErr
}

// Stop 触发关闭.
func (a *Application) Stop() {
	a.cancel()
}

// Context 应用上下文，关闭时取消.
func (a *Application) Context() context.Context {
	return a.ctx
}

func (a *Application) Name() string {
	return a.opts.name
}

func (a *Application) Version() string {
	return a.opts.version
}

// start 并发启动服务，返回的通道只接收启动失败的错误.
func (a *Application) start() <-chan error {
	errCh := make(chan error, len(a.servers))
	if len(a.servers) == 0 {
		a.opts.logger.Warn("[App] 没有注册任何服务")
		return errCh
	}

	for _, srv := range a.servers {
		go func() {
			log := a.opts.logger.With(logger.String("server", srv.Name()))
			if addr := srv.Addr(); addr != "" {
				log = log.With(logger.String("addr", addr))
			}
			log.Info("[App] 启动服务")
			if err := srv.Start(a.ctx); err != nil {
				log.With(logger.Err(err)).Error("[App] 服务启动失败")
				errCh <- err
			}
		}()
	}
	return errCh
}

func (a *Application) wait(errCh <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, a.opts.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.opts.logger.With(logger.String("signal", sig.String())).Info("[App] 收到退出信号")
		return nil
	case err := <-errCh:
		return err
	case <-a.ctx.Done():
		a.opts.logger.Info("[App] 上下文已取消")
		return nil
	}
}

func (a *Application) shutdown() error {
	a.opts.logger.With(logger.Duration("timeout", a.opts.gracefulTimeout)).Info("[App] 开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.gracefulTimeout)
	defer cancel()

	if err := a.opts.hooks.run(ctx, BeforeStop); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] 停止前钩子执行失败")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, srv := range a.servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Stop(ctx); err != nil {
				a.opts.logger.With(logger.String("server", srv.Name()), logger.Err(err)).Error("[App] 服务停止失败")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.opts.logger.Info("[App] 所有服务已停止")
	case <-ctx.Done():
		a.opts.logger.Warn("[App] 优雅关闭超时")
	}

	// 服务停止后再取消根上下文，避免后台任务在 Stop 之前被中断
	a.cancel()
	a.runCleanups(ctx)

	if err := a.opts.hooks.run(context.Background(), AfterStop); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] 停止后钩子执行失败")
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.opts.logger.Info("[App] 应用已停止")
	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}

func (a *Application) runCleanups(ctx context.Context) {
	a.mu.Lock()
	cleanups := a.opts.cleanups
	a.mu.Unlock()
	cleanups.Run(ctx, a.opts.logger)
}
