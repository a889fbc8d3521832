package saga

import (
	"context"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// compensate 按声明逆序对 SUCCESS 步骤发送补偿命令.
//
// 没有任何远程步骤成功时无需补偿，Saga 直接 FAILED. 重复执行只处理仍为 SUCCESS 的步骤.
// 补偿命令发送失败时停止，Saga 保持 COMPENSATING，等待恢复任务重新执行.
func (o *Orchestrator) compensate(ctx context.Context, s *Saga) error {
	if !hasRemoteSuccess(s) {
		s.Status = StatusFailed
		if err := o.save(ctx, s); err != nil {
			return err
		}
		o.opts.metrics.transition(StatusFailed)
		o.log(ctx, s).With(logger.String("reason", s.CompensationReason)).Info("[Saga] 无需补偿，已失败")
		return nil
	}

	for i := len(s.Steps) - 1; i >= 0; i-- {
		step := &s.Steps[i]
		if step.Status != StepSuccess {
			continue
		}

		if name, ok := inverseCommand(step.Name); ok {
			cmd, err := NewCommand(s.SagaID, s.OrderID, name, o.compensationData(s, name))
			if err != nil {
				return err
			}
			if err := o.publish(ctx, cmd); err != nil {
				o.log(ctx, s).With(
					logger.Step(string(step.Name)),
					logger.Err(err),
				).Error("[Saga] 补偿命令发送失败")
				return err
			}
		}

		step.Status = StepCompensated
		if err := o.save(ctx, s); err != nil {
			return err
		}
		o.log(ctx, s).With(logger.Step(string(step.Name))).Debug("[Saga] 步骤已补偿")
	}

	s.Status = StatusCompensated
	if err := o.save(ctx, s); err != nil {
		return err
	}
	o.opts.metrics.transition(StatusCompensated)
	o.log(ctx, s).Info("[Saga] 补偿完成")
	return nil
}

func hasRemoteSuccess(s *Saga) bool {
	for _, step := range s.Steps {
		if step.Name.remote() && step.Status == StepSuccess {
			return true
		}
	}
	return false
}

func (o *Orchestrator) compensationData(s *Saga, name CommandName) any {
	switch name {
	case CommandReleaseInventory:
		return InventoryCommandData{Items: s.OrderData.Items}
	case CommandRefundPayment:
		return RefundCommandData{PaymentID: s.PaymentID}
	default:
		return CancelCommandData{Reason: s.CompensationReason}
	}
}
