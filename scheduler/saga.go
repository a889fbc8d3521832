package scheduler

import (
	"context"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// 编排器维护任务名称.
const (
	JobSweepStuckSteps      = "saga-sweep-stuck-steps"
	JobRecoverCompensations = "saga-recover-compensations"
)

// SagaMaintainer 编排器的维护操作，saga.Orchestrator 实现了该接口.
type SagaMaintainer interface {
	SweepStuckSteps(ctx context.Context, timeout time.Duration) (int, error)
	RecoverCompensations(ctx context.Context, grace time.Duration) (int, error)
}

// SweepStuckStepsJob 将执行超过 stepTimeout 的步骤判定为失败.
func SweepStuckStepsJob(m SagaMaintainer, schedule string, stepTimeout time.Duration, log logger.Logger) *JobBuilder {
	return NewJob(JobSweepStuckSteps).
		Schedule(schedule).
		Singleton().
		Handler(func(ctx context.Context) error {
			n, err := m.SweepStuckSteps(ctx, stepTimeout)
			if n > 0 && log != nil {
				log.With(logger.Int("sagas", n)).Warn("[Scheduler] 已判定超时步骤")
			}
			return err
		})
}

// RecoverCompensationsJob 重新执行停留在 COMPENSATING 超过 grace 的补偿.
func RecoverCompensationsJob(m SagaMaintainer, schedule string, grace time.Duration, log logger.Logger) *JobBuilder {
	return NewJob(JobRecoverCompensations).
		Schedule(schedule).
		Singleton().
		Handler(func(ctx context.Context) error {
			n, err := m.RecoverCompensations(ctx, grace)
			if n > 0 && log != nil {
				log.With(logger.Int("sagas", n)).Info("[Scheduler] 已恢复补偿")
			}
			return err
		})
}
