package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
)

// 默认失败原因.
const defaultFailureReason = "Step failed"

// HandleReply 处理参与方回复，可直接作为 messaging.MessageHandler 使用.
//
// 无法解码的消息记录日志后丢弃，不触发重试.
func (o *Orchestrator) HandleReply(ctx context.Context, msg *messaging.Message) error {
	reply, err := DecodeReply(msg)
	if err != nil {
		o.opts.logger.WithContext(ctx).With(
			logger.Topic(msg.Topic),
			logger.Int64("offset", msg.Offset),
			logger.Err(err),
		).Warn("[Saga] 回复解码失败，已丢弃")
		o.opts.metrics.dropped("decode")
		return nil
	}
	return o.ProcessReply(ctx, reply)
}

// ProcessReply 处理已解码的回复.
//
// 未知 Saga、与当前步骤不匹配的回复、补偿命令的回复以及非 IN_PROGRESS 步骤的重复回复
// 均记录日志后丢弃. 返回错误时消息通道会重新投递.
func (o *Orchestrator) ProcessReply(ctx context.Context, reply *Reply) error {
	o.opts.metrics.reply(reply.Command, reply.Status)

	log := o.opts.logger.WithContext(ctx).With(
		logger.SagaID(reply.SagaID),
		logger.String("command", string(reply.Command)),
		logger.String("replyStatus", string(reply.Status)),
	)

	if reply.Command.Compensation() {
		log.Info("[Saga] 收到补偿命令回复")
		o.opts.metrics.dropped("compensation")
		return nil
	}

	return o.opts.locker.WithLock(ctx, reply.SagaID, func(ctx context.Context) error {
		s, err := o.store.Get(ctx, reply.SagaID)
		if errors.Is(err, ErrSagaNotFound) {
			log.Warn("[Saga] 回复对应的 Saga 不存在，已丢弃")
			o.opts.metrics.dropped("unknown_saga")
			return nil
		}
		if err != nil {
			return err
		}

		log = log.With(logger.String("currentStep", string(s.CurrentStep)))
		step := s.Step(s.CurrentStep)
		switch {
		case step == nil:
			log.Warn("[Saga] 当前没有等待回复的步骤，已丢弃")
			o.opts.metrics.dropped("no_step")
			return nil
		case StepName(reply.Command) != s.CurrentStep:
			log.Warn("[Saga] 回复与当前步骤不匹配，已丢弃")
			o.opts.metrics.dropped("stale")
			return nil
		case step.Status != StepInProgress:
			log.With(logger.String("stepStatus", string(step.Status))).Info("[Saga] 重复回复，已丢弃")
			o.opts.metrics.dropped("duplicate")
			return nil
		}

		data, err := reply.DecodeData()
		if err != nil {
			return o.handleStepFailure(ctx, s, err)
		}

		switch reply.Status {
		case ReplySuccess:
			if err := requireResultID(s.CurrentStep, data); err != nil {
				log.Warn("[Saga] 成功回复缺少结果 ID，按失败处理")
				return o.handleStepFailure(ctx, s, err)
			}
			return o.onStepSuccess(ctx, s, reply.dataMap(), data)
		case ReplyFailed:
			if data.RemoteSideEffectConfirmed {
				recovered, err := o.recoverSideEffect(ctx, s, data)
				if err == nil {
					log.Warn("[Saga] 远程副作用已确认，按成功处理")
					return o.onStepSuccess(ctx, s, toMap(recovered), recovered)
				}
				log.With(logger.Err(err)).Error("[Saga] 副作用补录失败，按失败处理")
			}
			reason := data.Reason
			if reason == "" {
				reason = defaultFailureReason
			}
			return o.handleStepFailure(ctx, s, errors.New(reason))
		default:
			log.Warn("[Saga] 未知的回复状态，已丢弃")
			o.opts.metrics.dropped("unknown_status")
			return nil
		}
	})
}

// requireResultID 校验成功回复携带后续补偿所需的 ID.
func requireResultID(step StepName, data *ReplyData) error {
	switch {
	case step == StepProcessPayment && data.PaymentID == "":
		return fmt.Errorf("%w: paymentId", ErrMissingResultID)
	case step == StepReserveInventory && data.ReservationID == "":
		return fmt.Errorf("%w: reservationId", ErrMissingResultID)
	}
	return nil
}

// onStepSuccess 标记当前步骤成功并推进到下一步.
func (o *Orchestrator) onStepSuccess(ctx context.Context, s *Saga, stepData map[string]any, data *ReplyData) error {
	step := s.Step(s.CurrentStep)
	now := o.opts.clock()
	step.Status = StepSuccess
	step.CompletedAt = &now
	step.Error = ""
	step.Data = stepData
	if step.StartedAt != nil {
		o.opts.metrics.stepDuration(step.Name, now.Sub(*step.StartedAt))
	}

	switch s.CurrentStep {
	case StepProcessPayment:
		s.PaymentID = data.PaymentID
		s.Status = StatusPaymentCompleted
		s.CurrentStep = StepReserveInventory
	case StepReserveInventory:
		s.ReservationID = data.ReservationID
		s.Status = StatusInventoryReserved
		s.CurrentStep = StepCompleteOrder
	}
	if err := o.save(ctx, s); err != nil {
		return err
	}
	o.opts.metrics.transition(s.Status)
	o.log(ctx, s).With(logger.Step(string(step.Name))).Info("[Saga] 步骤成功")

	return o.executeNextStep(ctx, s)
}

// recoverSideEffect 处理结果分歧: 参与方报告失败，但远程副作用已确认发生.
//
// 先将确认信息记录到 Saga，再由补录器在参与方存储中幂等地补建记录.
func (o *Orchestrator) recoverSideEffect(ctx context.Context, s *Saga, data *ReplyData) (*ReplyData, error) {
	recorder, ok := o.opts.recorders[s.CurrentStep]
	if !ok {
		return nil, fmt.Errorf("步骤 %s 未配置副作用补录器", s.CurrentStep)
	}

	s.Confirmation = data.Confirmation
	if s.Confirmation == nil {
		s.Confirmation = map[string]any{}
	}

	id, err := recorder.EnsureRecorded(ctx, SideEffect{
		SagaID:     s.SagaID,
		OrderID:    s.OrderID,
		Step:       s.CurrentStep,
		CustomerID: s.OrderData.CustomerID,
		Amount:     s.OrderData.TotalAmount,
		Items:      s.OrderData.Items,
		Data:       data,
	})
	if err != nil {
		return nil, err
	}

	recovered := *data
	recovered.Reason = ""
	switch s.CurrentStep {
	case StepProcessPayment:
		recovered.PaymentID = id
	case StepReserveInventory:
		recovered.ReservationID = id
	}
	return &recovered, nil
}

func toMap(data *ReplyData) map[string]any {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
