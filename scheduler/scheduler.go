// Package scheduler 提供基于 Cron 的周期任务调度.
//
// 用于编排器的维护任务: 超时步骤清扫与补偿恢复. 多副本部署时
// 通过 TryLocker 保证同一任务在同一时刻只有一个实例执行.
//
// 示例:
//
//	s := scheduler.MustNew(
//	    scheduler.WithLogger(log),
//	    scheduler.WithLocker(redisLock),
//	)
//
//	s.Add(scheduler.NewJob("saga-sweeper").
//	    Schedule("*/30 * * * * *").
//	    Handler(sweep).
//	    Singleton().
//	    Distributed().
//	    MustBuild(),
//	)
//
//	s.Start()
//	defer s.Shutdown(ctx)
package scheduler

import "context"

// Scheduler 调度器接口.
type Scheduler interface {
	// Add 添加任务.
	Add(job *Job) error
	// Remove 移除任务.
	Remove(name string) error
	Get(name string) (*Job, bool)
	List() []*Job

	Start() error
	// Shutdown 停止调度并等待执行中的任务完成.
	Shutdown(ctx context.Context) error
	Running() bool

	// Trigger 立即执行一次任务，不影响正常调度.
	Trigger(name string) error
}

// TryLocker 非阻塞的分布式锁.
//
// lock.Redis 实现了该接口.
type TryLocker interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// New 创建调度器.
func New(opts ...Option) (Scheduler, error) {
	return newCronScheduler(opts...)
}

// MustNew 创建调度器，失败时 panic.
func MustNew(opts ...Option) Scheduler {
	s, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return s
}
