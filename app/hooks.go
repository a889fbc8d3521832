package app

import (
	"context"
	"fmt"
)

// Hook 生命周期钩子.
type Hook func(ctx context.Context) error

// Phase 钩子执行阶段.
type Phase int

const (
	// BeforeStart 服务启动前执行，失败会中止启动. 建表、建索引、写种子数据与订阅主题都放在这里.
	BeforeStart Phase = iota
	// AfterStart 所有服务已调用 Start.
	AfterStart
	// BeforeStop 优雅关闭开始、服务停止之前.
	BeforeStop
	// AfterStop 服务停止且清理任务完成之后.
	AfterStop

	phaseCount
)

var phaseNames = [phaseCount]string{"beforeStart", "afterStart", "beforeStop", "afterStop"}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Hooks 按阶段登记的钩子. 同一阶段按登记顺序执行，遇到错误即停止.
//
// 零值可直接使用. 只有 BeforeStart 的错误会返回给调用方，其余阶段的错误只记录日志.
type Hooks struct {
	phases [phaseCount][]Hook
}

// NewHooks 创建空钩子集合.
func NewHooks() *Hooks {
	return &Hooks{}
}

// On 在指定阶段追加钩子，返回自身便于链式调用.
func (h *Hooks) On(phase Phase, hook Hook) *Hooks {
	if phase < 0 || phase >= phaseCount {
		panic(fmt.Sprintf("app: unknown hook %s", phase))
	}
	h.phases[phase] = append(h.phases[phase], hook)
	return h
}

func (h *Hooks) run(ctx context.Context, phase Phase) error {
	if h == nil {
		return nil
	}
	for i, hook := range h.phases[phase] {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("%s hook #%d: %w", phase, i, err)
		}
	}
	return nil
}
