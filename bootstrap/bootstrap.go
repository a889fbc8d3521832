// Package bootstrap 按配置组装进程: 基础设施连接、编排器、参与方与 HTTP 服务.
//
// 同一份配置可以启动三种进程:
//
//	orchestrator  编排器，对外提供 /api/orchestrator 接口并消费回复
//	participant   支付、库存、订单参与方，消费命令
//	standalone    两者合一，适合本地开发
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/Tsukikage7/saga-orchestrator/api"
	"github.com/Tsukikage7/saga-orchestrator/app"
	"github.com/Tsukikage7/saga-orchestrator/cache"
	"github.com/Tsukikage7/saga-orchestrator/config"
	"github.com/Tsukikage7/saga-orchestrator/database"
	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
	"github.com/Tsukikage7/saga-orchestrator/participant/payment"
	"github.com/Tsukikage7/saga-orchestrator/saga"
	"github.com/Tsukikage7/saga-orchestrator/storage/mongodb"
	"github.com/Tsukikage7/saga-orchestrator/transport/health"
	"github.com/Tsukikage7/saga-orchestrator/transport/http/server"
)

// Role 进程角色.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleParticipant  Role = "participant"
)

// ErrNoRole 未指定进程角色.
var ErrNoRole = errors.New("bootstrap: 至少需要一个角色")

// Runtime 组装完成的进程.
type Runtime struct {
	cfg   *config.Config
	log   logger.Logger
	roles []Role

	app      *app.Application
	hooks    *app.Hooks
	cleanups app.Cleanups
	checkers []health.Checker

	metrics *metrics.PrometheusCollector
	broker  *messaging.Client
	db      *database.DB
	mongo   *mongodb.Client
	cache   cache.Cache

	payments payment.Store
	orch     *saga.Orchestrator
	server   *server.Server
}

// Build 按配置与角色组装进程，失败时释放已建立的连接.
//
// cfg 需已执行 ApplyDefaults 与 Validate，config.Load 会完成这两步.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, roles ...Role) (*Runtime, error) {
	if len(roles) == 0 {
		return nil, ErrNoRole
	}

	r := &Runtime{
		cfg:   cfg,
		log:   log,
		roles: roles,
		hooks: app.NewHooks(),
	}
	r.app = app.New(
		app.Name(cfg.App.Name),
		app.Version(cfg.App.Version),
		app.Logger(log),
		app.GracefulTimeout(cfg.App.GracefulTimeout),
		app.SetHooks(r.hooks),
	)

	if err := r.build(ctx); err != nil {
		r.release(context.Background())
		return nil, err
	}
	for _, c := range r.cleanups {
		r.app.AddCleanup(c.Name, c.Fn, c.Priority)
	}
	return r, nil
}

func (r *Runtime) build(ctx context.Context) error {
	if err := r.openTelemetry(); err != nil {
		return err
	}
	if err := r.openBroker(); err != nil {
		return err
	}
	if err := r.openStores(ctx); err != nil {
		return err
	}
	if r.Has(RoleOrchestrator) {
		if err := r.buildOrchestrator(); err != nil {
			return fmt.Errorf("bootstrap: 编排器: %w", err)
		}
	}
	if r.Has(RoleParticipant) {
		if err := r.buildParticipants(); err != nil {
			return fmt.Errorf("bootstrap: 参与方: %w", err)
		}
	}
	return r.buildHTTP()
}

// buildHTTP 编排器角色挂载业务接口，纯参与方进程只暴露健康检查与指标.
func (r *Runtime) buildHTTP() error {
	var handler http.Handler = http.NotFoundHandler()
	if r.orch != nil {
		handler = api.NewHandler(r.orch, r.log)
	}

	opts := []server.Option{
		server.WithConfig(r.cfg.HTTP),
		server.WithLogger(r.log),
		server.WithMetrics(r.metrics),
		server.WithReadinessChecker(r.checkers...),
	}
	if r.cfg.Tracing.Enabled {
		opts = append(opts, server.WithTrace(r.cfg.App.Name))
	}
	r.server = server.New(handler, opts...)
	r.app.Use(r.server)
	return nil
}

// Has 报告进程是否承担该角色.
func (r *Runtime) Has(role Role) bool {
	return slices.Contains(r.roles, role)
}

// App 返回应用程序，调用 Run 启动.
func (r *Runtime) App() *app.Application { return r.app }

// Handler 返回 HTTP 处理器，包含业务路由、健康检查与指标端点.
func (r *Runtime) Handler() http.Handler { return r.server.Handler() }

// Server 返回 HTTP 服务器.
func (r *Runtime) Server() *server.Server { return r.server }

// Orchestrator 返回编排器，未承担编排器角色时为 nil.
func (r *Runtime) Orchestrator() *saga.Orchestrator { return r.orch }

// onClose 登记清理任务，Build 成功后交给 Application 管理.
func (r *Runtime) onClose(name string, priority int, fn app.CleanupFunc) {
	r.cleanups.Add(name, priority, fn)
}

// beforeStart 登记启动前钩子，按登记顺序执行.
func (r *Runtime) beforeStart(hook app.Hook) {
	r.hooks.On(app.BeforeStart, hook)
}

func (r *Runtime) addChecker(c health.Checker) {
	r.checkers = append(r.checkers, c)
}

// release 组装失败时按优先级释放已登记的资源.
func (r *Runtime) release(ctx context.Context) {
	r.cleanups.Run(ctx, r.log)
	r.cleanups = nil
}
