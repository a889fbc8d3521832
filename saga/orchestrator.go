package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
)

// Orchestrator Saga 编排器.
//
// 所有状态变更都在以 sagaId 为键的锁内完成，并在锁内重新读取 Saga.
// 状态总是先持久化再发送命令.
type Orchestrator struct {
	store    Store
	producer messaging.Producer
	opts     *options
}

// NewOrchestrator 创建编排器.
func NewOrchestrator(store Store, producer messaging.Producer, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if producer == nil {
		return nil, ErrNilProducer
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Orchestrator{store: store, producer: producer, opts: o}, nil
}

// validateOrder 校验下单数据.
func validateOrder(data OrderData) error {
	if strings.TrimSpace(data.CustomerID) == "" {
		return fmt.Errorf("%w: customerId 不能为空", ErrInvalidOrder)
	}
	if len(data.Items) == 0 {
		return fmt.Errorf("%w: items 不能为空", ErrInvalidOrder)
	}
	for i, item := range data.Items {
		switch {
		case strings.TrimSpace(item.ProductID) == "":
			return fmt.Errorf("%w: items[%d].productId 不能为空", ErrInvalidOrder, i)
		case item.Quantity <= 0:
			return fmt.Errorf("%w: items[%d].quantity 必须大于 0", ErrInvalidOrder, i)
		case item.Price < 0:
			return fmt.Errorf("%w: items[%d].price 不能为负数", ErrInvalidOrder, i)
		}
	}
	return nil
}

// StartSaga 创建并启动 Saga.
//
// 校验失败返回 ErrInvalidOrder，不创建 Saga. 总额由服务端按明细计算.
// 创建成功后推进不受 ctx 取消影响.
// 返回发送第一个命令之后的 Saga 状态.
func (o *Orchestrator) StartSaga(ctx context.Context, data OrderData) (*Saga, error) {
	if err := validateOrder(data); err != nil {
		return nil, err
	}

	now := o.opts.clock()
	s := &Saga{
		SagaID:      o.opts.idGen(),
		OrderID:     o.opts.idGen(),
		Status:      StatusStarted,
		CurrentStep: StepCreateOrder,
		Steps:       newSteps(),
		OrderData: OrderData{
			CustomerID:  data.CustomerID,
			Items:       append([]OrderItem(nil), data.Items...),
			TotalAmount: data.Total(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.Create(ctx, s); err != nil {
		return nil, err
	}
	o.opts.metrics.transition(StatusStarted)
	o.log(ctx, s).With(logger.Float64("totalAmount", s.OrderData.TotalAmount)).Info("[Saga] 已创建")

	// 已提交的 Saga 必须推进到第一个远程步骤，调用方断开不中断推进
	var result *Saga
	err := o.opts.locker.WithLock(context.WithoutCancel(ctx), s.SagaID, func(ctx context.Context) error {
		current, err := o.store.Get(ctx, s.SagaID)
		if err != nil {
			return err
		}
		if err := o.executeNextStep(ctx, current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// executeNextStep 按 currentStep 推进 Saga.
//
// 步骤执行出错转入 handleStepFailure，只有持久化失败会返回错误.
func (o *Orchestrator) executeNextStep(ctx context.Context, s *Saga) error {
	var err error
	switch s.CurrentStep {
	case StepCreateOrder:
		if err = o.createOrder(ctx, s); err == nil {
			return o.executeNextStep(ctx, s)
		}
	case StepProcessPayment:
		err = o.dispatchStep(ctx, s, CommandProcessPayment, PaymentCommandData{
			CustomerID: s.OrderData.CustomerID,
			Amount:     s.OrderData.TotalAmount,
		})
	case StepReserveInventory:
		err = o.dispatchStep(ctx, s, CommandReserveInventory, InventoryCommandData{Items: s.OrderData.Items})
	case StepCompleteOrder:
		err = o.completeOrder(ctx, s)
	case StepCompensate:
		return o.compensate(ctx, s)
	case StepCompleted:
		return nil
	default:
		err = fmt.Errorf("%w: %s", ErrStepNotFound, s.CurrentStep)
	}

	if err != nil {
		return o.handleStepFailure(ctx, s, err)
	}
	return nil
}

// createOrder 本地执行 CREATE_ORDER，总是成功.
func (o *Orchestrator) createOrder(ctx context.Context, s *Saga) error {
	step := s.Step(StepCreateOrder)
	now := o.opts.clock()
	step.StartedAt = &now
	step.Status = StepSuccess
	step.CompletedAt = &now
	step.Error = ""
	step.Data = map[string]any{"orderId": s.OrderID}

	s.CurrentStep = StepProcessPayment
	return o.save(ctx, s)
}

// dispatchStep 将 currentStep 标记为 IN_PROGRESS，持久化后发送命令，不等待回复.
func (o *Orchestrator) dispatchStep(ctx context.Context, s *Saga, name CommandName, data any) error {
	step := s.Step(s.CurrentStep)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, s.CurrentStep)
	}

	now := o.opts.clock()
	step.Status = StepInProgress
	step.StartedAt = &now
	step.CompletedAt = nil
	step.Error = ""
	s.Status = s.CurrentStep.inFlightStatus()
	if err := o.save(ctx, s); err != nil {
		return err
	}
	o.opts.metrics.transition(s.Status)

	cmd, err := NewCommand(s.SagaID, s.OrderID, name, data)
	if err != nil {
		return err
	}
	if err := o.publish(ctx, cmd); err != nil {
		return err
	}
	o.log(ctx, s).With(logger.String("command", string(name))).Debug("[Saga] 命令已发送")
	return nil
}

// completeOrder 本地执行 COMPLETE_ORDER.
func (o *Orchestrator) completeOrder(ctx context.Context, s *Saga) error {
	step := s.Step(StepCompleteOrder)
	now := o.opts.clock()
	step.StartedAt = &now
	step.Status = StepSuccess
	step.CompletedAt = &now
	step.Error = ""

	s.Status = StatusCompleted
	s.CurrentStep = StepCompleted
	if err := o.save(ctx, s); err != nil {
		return err
	}
	o.opts.metrics.transition(StatusCompleted)
	o.log(ctx, s).Info("[Saga] 已完成")
	return nil
}

// handleStepFailure 标记当前步骤失败并进入补偿.
func (o *Orchestrator) handleStepFailure(ctx context.Context, s *Saga, cause error) error {
	reason := cause.Error()
	if step := s.Step(s.CurrentStep); step != nil {
		now := o.opts.clock()
		step.Status = StepFailed
		step.CompletedAt = &now
		step.Error = reason
	}

	o.log(ctx, s).With(
		logger.Step(string(s.CurrentStep)),
		logger.String("reason", reason),
	).Warn("[Saga] 步骤失败，开始补偿")

	s.Status = StatusCompensating
	s.CurrentStep = StepCompensate
	s.CompensationReason = reason
	if err := o.save(ctx, s); err != nil {
		return errors.Join(cause, err)
	}
	o.opts.metrics.transition(StatusCompensating)
	return o.compensate(ctx, s)
}

// save 更新 updatedAt 后整体写回.
func (o *Orchestrator) save(ctx context.Context, s *Saga) error {
	s.UpdatedAt = o.opts.clock()
	if err := o.store.Update(ctx, s); err != nil {
		o.log(ctx, s).With(logger.Err(err)).Error("[Saga] 保存状态失败")
		return err
	}
	return nil
}

// publish 发送命令，失败时按配置重试.
func (o *Orchestrator) publish(ctx context.Context, cmd *Command) error {
	msg, err := cmd.Message()
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			_, err := o.producer.SendMessage(ctx, msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(o.opts.publishRetries),
		retry.Delay(o.opts.publishDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.opts.logger.WithContext(ctx).With(
				logger.SagaID(cmd.SagaID),
				logger.String("command", string(cmd.Command)),
				logger.Int("attempt", int(n)+1),
				logger.Err(err),
			).Warn("[Saga] 命令发送失败，重试中")
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublish, cmd.Command, err)
	}
	return nil
}

func (o *Orchestrator) log(ctx context.Context, s *Saga) logger.Logger {
	return o.opts.logger.WithContext(ctx).With(
		logger.SagaID(s.SagaID),
		logger.OrderID(s.OrderID),
		logger.String("status", string(s.Status)),
	)
}
