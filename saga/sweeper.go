package saga

import (
	"context"
	"errors"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// 每次扫描处理的最大数量.
const sweepBatchSize = 100

// ErrStepTimedOut 步骤等待回复超时，作为步骤错误记录.
var ErrStepTimedOut = errors.New("step timed out")

// SweepStuckSteps 将等待回复超过 timeout 的步骤标记为失败并进入补偿，返回处理数量.
func (o *Orchestrator) SweepStuckSteps(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, nil
	}
	cutoff := o.opts.clock().Add(-timeout)

	candidates, _, err := o.store.List(ctx, ListQuery{
		Statuses:      []Status{StatusPaymentProcessing, StatusInventoryReserving},
		UpdatedBefore: cutoff,
		SortBy:        SortByUpdatedAt,
		Ascending:     true,
		Limit:         sweepBatchSize,
	})
	if err != nil {
		return 0, err
	}

	var (
		swept int
		errs  []error
	)
	for _, c := range candidates {
		err := o.opts.locker.WithLock(ctx, c.SagaID, func(ctx context.Context) error {
			s, err := o.store.Get(ctx, c.SagaID)
			if err != nil {
				return err
			}
			step := s.inProgressStep()
			if step == nil || step.Name != s.CurrentStep || step.StartedAt == nil || !step.StartedAt.Before(cutoff) {
				return nil
			}
			o.log(ctx, s).With(
				logger.Step(string(step.Name)),
				logger.Time("startedAt", *step.StartedAt),
			).Warn("[Saga] 步骤等待回复超时")
			swept++
			return o.handleStepFailure(ctx, s, ErrStepTimedOut)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return swept, errors.Join(errs...)
}

// RecoverCompensations 重新执行停留在 COMPENSATING 超过 grace 的 Saga 的补偿，返回处理数量.
func (o *Orchestrator) RecoverCompensations(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := o.opts.clock().Add(-grace)

	candidates, _, err := o.store.List(ctx, ListQuery{
		Statuses:      []Status{StatusCompensating},
		UpdatedBefore: cutoff,
		SortBy:        SortByUpdatedAt,
		Ascending:     true,
		Limit:         sweepBatchSize,
	})
	if err != nil {
		return 0, err
	}

	var (
		recovered int
		errs      []error
	)
	for _, c := range candidates {
		err := o.opts.locker.WithLock(ctx, c.SagaID, func(ctx context.Context) error {
			s, err := o.store.Get(ctx, c.SagaID)
			if err != nil {
				return err
			}
			if s.Status != StatusCompensating || !s.UpdatedAt.Before(cutoff) {
				return nil
			}
			o.log(ctx, s).Info("[Saga] 重新执行补偿")
			if err := o.compensate(ctx, s); err != nil {
				return err
			}
			recovered++
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return recovered, errors.Join(errs...)
}
