package app

import (
	"context"
	"sort"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// CleanupFunc 清理函数.
type CleanupFunc func(ctx context.Context) error

// Cleanup 清理任务，Priority 越小越先执行.
type Cleanup struct {
	Name     string
	Fn       CleanupFunc
	Priority int
}

// 常用清理优先级. 消费者先于消息客户端关闭，存储在消息之后，遥测最后.
const (
	PriorityConsumer  = 10
	PriorityBroker    = 20
	PriorityStore     = 30
	PriorityTelemetry = 40
)

// Cleanups 待执行的清理任务.
type Cleanups []Cleanup

// Add 追加清理任务.
func (cs *Cleanups) Add(name string, priority int, fn CleanupFunc) {
	*cs = append(*cs, Cleanup{Name: name, Fn: fn, Priority: priority})
}

// Run 按优先级依次执行，同优先级保持登记顺序. 单个任务失败只记录日志，不影响后续任务.
func (cs Cleanups) Run(ctx context.Context, log logger.Logger) {
	ordered := make(Cleanups, len(cs))
	copy(ordered, cs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, c := range ordered {
		l := log.With(logger.String("cleanup", c.Name))
		if err := c.Fn(ctx); err != nil {
			l.With(logger.Err(err)).Error("[App] 资源清理失败")
			continue
		}
		l.Debug("[App] 资源已清理")
	}
}
