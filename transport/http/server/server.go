// Package server 提供 HTTP 服务器与 Endpoint 适配.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
	"github.com/Tsukikage7/saga-orchestrator/tracing"
	"github.com/Tsukikage7/saga-orchestrator/transport/health"
)

// Config HTTP 服务器配置.
type Config struct {
	Name         string        `json:"name" yaml:"name" mapstructure:"name"`
	Addr         string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// Server HTTP 服务器.
//
// 内置 /healthz、/readyz，配置了指标采集器时在其路径上暴露 Prometheus 指标.
type Server struct {
	opts    *options
	handler http.Handler
	health  *health.Health

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New 创建 HTTP 服务器，未设置 logger 时 panic.
func New(handler http.Handler, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		panic("http server: 必须设置 logger")
	}

	h := health.New(append([]health.Option{health.WithTimeout(o.healthTimeout)}, o.healthOptions...)...)

	wrapped := handler
	if o.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle(o.metrics.GetPath(), o.metrics.GetHandler())
		mux.Handle("/", metrics.HTTPMiddleware(o.metrics)(handler))
		wrapped = mux
	}
	wrapped = health.Middleware(h)(wrapped)
	if o.tracerName != "" {
		wrapped = tracing.HTTPMiddleware(o.tracerName)(wrapped)
	}

	return &Server{opts: o, handler: wrapped, health: h}
}

// Start 监听并服务，阻塞到 ctx 取消或服务出错.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.readTimeout,
		WriteTimeout: s.opts.writeTimeout,
		IdleTimeout:  s.opts.idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.opts.logger.With(
		logger.String("server", s.opts.name),
		logger.String("addr", ln.Addr().String()),
	).Info("[HTTP] 服务器启动")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	return nil
}

// Stop 优雅关闭.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.opts.logger.With(logger.String("server", s.opts.name)).Info("[HTTP] 服务器停止中")
	return srv.Shutdown(ctx)
}

func (s *Server) Name() string {
	return s.opts.name
}

// Addr 返回监听地址，启动后为实际地址.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.addr
}

// Handler 返回包装后的 Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health 返回健康检查管理器.
func (s *Server) Health() *health.Health {
	return s.health
}

// Option 配置选项.
type Option func(*options)

type options struct {
	name          string
	addr          string
	readTimeout   time.Duration
	writeTimeout  time.Duration
	idleTimeout   time.Duration
	logger        logger.Logger
	metrics       *metrics.PrometheusCollector
	healthTimeout time.Duration
	healthOptions []health.Option
	tracerName    string
}

func defaultOptions() *options {
	return &options{
		name:          "HTTP",
		addr:          ":8080",
		readTimeout:   30 * time.Second,
		writeTimeout:  30 * time.Second,
		idleTimeout:   120 * time.Second,
		healthTimeout: 5 * time.Second,
	}
}

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithAddr(addr string) Option {
	return func(o *options) { o.addr = addr }
}

// WithConfig 从配置设置选项，零值字段保持默认.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.Name != "" {
			o.name = cfg.Name
		}
		if cfg.Addr != "" {
			o.addr = cfg.Addr
		}
		if cfg.ReadTimeout > 0 {
			o.readTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			o.writeTimeout = cfg.WriteTimeout
		}
		if cfg.IdleTimeout > 0 {
			o.idleTimeout = cfg.IdleTimeout
		}
	}
}

// WithLogger 设置日志记录器（必需）.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithMetrics 记录请求指标并暴露指标端点.
func WithMetrics(collector *metrics.PrometheusCollector) Option {
	return func(o *options) { o.metrics = collector }
}

// WithHealthTimeout 设置健康检查超时.
func WithHealthTimeout(d time.Duration) Option {
	return func(o *options) { o.healthTimeout = d }
}

// WithReadinessChecker 添加就绪检查器.
func WithReadinessChecker(checkers ...health.Checker) Option {
	return func(o *options) {
		o.healthOptions = append(o.healthOptions, health.WithReadinessChecker(checkers...))
	}
}

// WithLivenessChecker 添加存活检查器.
func WithLivenessChecker(checkers ...health.Checker) Option {
	return func(o *options) {
		o.healthOptions = append(o.healthOptions, health.WithLivenessChecker(checkers...))
	}
}

// WithTrace 启用链路追踪，需先通过 tracing.NewTracer 初始化全局 TracerProvider.
func WithTrace(serviceName string) Option {
	return func(o *options) { o.tracerName = serviceName }
}
