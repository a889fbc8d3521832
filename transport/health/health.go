// Package health 提供存活与就绪检查.
//
// 存活检查只反映进程状态；就绪检查覆盖存储、消息通道等依赖，任一 DOWN 时返回 503.
package health

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Status 健康状态.
type Status string

const (
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
	StatusUnknown Status = "UNKNOWN"
)

var bySeverity = [...]Status{StatusUp, StatusUnknown, StatusDown}

// severity 汇总时取最严重的状态，无法识别的状态按 UNKNOWN 处理.
func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDown:
		return 2
	default:
		return 1
	}
}

// CheckResult 单个依赖的检查结果. Duration 由 Health 填写.
type CheckResult struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration time.Duration  `json:"-"`
	Details  map[string]any `json:"details,omitempty"`
}

func (r CheckResult) MarshalJSON() ([]byte, error) {
	type plain CheckResult
	return json.Marshal(struct {
		plain
		Duration string `json:"duration,omitempty"`
	}{plain(r), r.Duration.String()})
}

// Response 一次探针的汇总结果.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"-"`
	Duration  time.Duration          `json:"-"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	return json.Marshal(struct {
		plain
		Timestamp string `json:"timestamp"`
		Duration  string `json:"duration"`
	}{plain(r), r.Timestamp.Format(time.RFC3339), r.Duration.String()})
}

// Checker 依赖检查器.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewCheckerFunc 把函数包装成 Checker.
func NewCheckerFunc(name string, fn func(ctx context.Context) CheckResult) Checker {
	return funcChecker{name: name, fn: fn}
}

func (c funcChecker) Name() string                          { return c.name }
func (c funcChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// Option Health 选项.
type Option func(*Health)

// WithTimeout 单次探针的总超时，默认 5 秒.
func WithTimeout(d time.Duration) Option {
	return func(h *Health) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLivenessChecker 追加存活检查器.
func WithLivenessChecker(checkers ...Checker) Option {
	return func(h *Health) { h.liveness = append(h.liveness, checkers...) }
}

// WithReadinessChecker 追加就绪检查器.
func WithReadinessChecker(checkers ...Checker) Option {
	return func(h *Health) { h.readiness = append(h.readiness, checkers...) }
}

// Health 管理存活与就绪两组检查器.
type Health struct {
	timeout time.Duration

	mu        sync.RWMutex
	liveness  []Checker
	readiness []Checker
}

// New 创建 Health.
func New(opts ...Option) *Health {
	h := &Health{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddReadinessChecker 追加就绪检查器，可在服务运行中调用.
func (h *Health) AddReadinessChecker(checkers ...Checker) {
	h.mu.Lock()
	h.readiness = append(h.readiness, checkers...)
	h.mu.Unlock()
}

// Liveness 执行存活检查，未注册检查器时为 UP.
func (h *Health) Liveness(ctx context.Context) Response {
	h.mu.RLock()
	checkers := h.liveness
	h.mu.RUnlock()
	return h.probe(ctx, checkers)
}

// Readiness 执行就绪检查.
func (h *Health) Readiness(ctx context.Context) Response {
	h.mu.RLock()
	checkers := h.readiness
	h.mu.RUnlock()
	return h.probe(ctx, checkers)
}

// probe 并发执行检查器，共享同一个超时.
func (h *Health) probe(ctx context.Context, checkers []Checker) Response {
	resp := Response{Status: StatusUp, Timestamp: time.Now()}
	if len(checkers) == 0 {
		resp.Duration = time.Since(resp.Timestamp)
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	resp.Checks = make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			began := time.Now()
			r := c.Check(ctx)
			r.Duration = time.Since(began)

			mu.Lock()
			resp.Checks[c.Name()] = r
			if sev := r.Status.severity(); sev > resp.Status.severity() {
				resp.Status = bySeverity[sev]
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	resp.Duration = time.Since(resp.Timestamp)
	return resp
}
