package saga

import (
	"context"
	"fmt"
	"slices"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// RetrySaga 从失败步骤继续执行 FAILED 或 COMPENSATED 的 Saga.
//
// 只重置失败步骤及其之后状态为 FAILED/COMPENSATED 的步骤，之前的步骤保持原状.
// 状态不允许或没有失败步骤时返回错误，Saga 不做任何修改.
func (o *Orchestrator) RetrySaga(ctx context.Context, sagaID string) (*Saga, error) {
	var result *Saga
	err := o.opts.locker.WithLock(ctx, sagaID, func(ctx context.Context) error {
		s, err := o.store.Get(ctx, sagaID)
		if err != nil {
			return err
		}

		if !s.Status.Retryable() || s.CurrentStep == StepCompleted {
			return fmt.Errorf("%w: status=%s", ErrInvalidState, s.Status)
		}
		idx := slices.IndexFunc(s.Steps, func(st Step) bool { return st.Status == StepFailed })
		if idx < 0 {
			return ErrNoFailedStep
		}
		from := s.Steps[idx].Name

		now := o.opts.clock()
		s.RetryHistory = append(s.RetryHistory, RetryRecord{RetryAt: now, FromStep: from, Result: RetryResultStarted})
		s.LastRetryAt = &now

		for i := idx; i < len(s.Steps); i++ {
			step := &s.Steps[i]
			if step.Status == StepFailed || step.Status == StepCompensated {
				step.Status = StepPending
				step.Error = ""
				step.CompletedAt = nil
			}
		}
		s.CurrentStep = from
		s.Status = from.inFlightStatus()
		s.CompensationReason = ""
		if err := o.save(ctx, s); err != nil {
			return err
		}
		o.opts.metrics.retry(from)
		o.log(ctx, s).With(logger.String("fromStep", string(from))).Info("[Saga] 开始重试")

		if err := o.executeNextStep(ctx, s); err != nil {
			last := &s.RetryHistory[len(s.RetryHistory)-1]
			last.Result = RetryResultFailed
			last.Error = err.Error()
			_ = o.save(ctx, s)
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
