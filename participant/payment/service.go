package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/participant"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// Service 支付服务.
type Service struct {
	store   Store
	gateway Gateway
	logger  logger.Logger
	clock   func() time.Time
	idGen   func() string
}

// Option 配置选项函数.
type Option func(*Service)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock 设置时钟.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService 创建支付服务.
func NewService(store Store, gateway Gateway, opts ...Option) *Service {
	s := &Service{
		store:   store,
		gateway: gateway,
		logger:  logger.NewNop(),
		clock:   time.Now,
		idGen:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 将命令处理函数注册到分发器.
func (s *Service) Register(d *participant.Dispatcher) {
	d.Register(saga.CommandProcessPayment, s.ProcessPayment)
	d.Register(saga.CommandRefundPayment, s.RefundPayment)
}

// ProcessPayment 处理 PROCESS_PAYMENT.
//
// 订单已有成功支付时直接返回. 网关扣款成功但记录写入失败时，
// 返回带 RemoteSideEffectConfirmed 的失败，由编排器补录.
func (s *Service) ProcessPayment(ctx context.Context, cmd *saga.Command) (*saga.ReplyData, error) {
	var req saga.PaymentCommandData
	if err := cmd.DecodeData(&req); err != nil {
		return nil, err
	}

	p, err := s.store.GetByOrderID(ctx, cmd.OrderID)
	switch {
	case err == nil && p.Status == StatusSuccess:
		return &saga.ReplyData{PaymentID: p.PaymentID, TransactionID: p.TransactionID}, nil
	case err == nil:
		p.Amount = req.Amount
		p.CustomerID = req.CustomerID
		p.SagaID = cmd.SagaID
		p.FailureReason = ""
	case errors.Is(err, ErrPaymentNotFound):
		p = nil
	default:
		return nil, err
	}

	now := s.clock()
	if p == nil {
		p = &Payment{
			PaymentID:  s.idGen(),
			OrderID:    cmd.OrderID,
			SagaID:     cmd.SagaID,
			CustomerID: req.CustomerID,
			Amount:     req.Amount,
			Status:     StatusProcessing,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Create(ctx, p); err != nil {
			return nil, err
		}
	} else {
		p.Status = StatusProcessing
		p.UpdatedAt = now
		if err := s.store.Update(ctx, p); err != nil {
			return nil, err
		}
	}

	log := s.logger.WithContext(ctx).With(
		logger.OrderID(p.OrderID),
		logger.String("paymentId", p.PaymentID),
		logger.Float64("amount", p.Amount),
	)

	charge, err := s.gateway.Charge(ctx, ChargeRequest{OrderID: p.OrderID, CustomerID: p.CustomerID, Amount: p.Amount})
	if err != nil {
		p.Status = StatusFailed
		p.FailureReason = err.Error()
		p.UpdatedAt = s.clock()
		if uerr := s.store.Update(ctx, p); uerr != nil {
			log.With(logger.Err(uerr)).Error("[Payment] 失败状态写入失败")
		}
		log.With(logger.Err(err)).Warn("[Payment] 扣款失败")
		return nil, err
	}

	p.Status = StatusSuccess
	p.TransactionID = charge.TransactionID
	p.UpdatedAt = s.clock()
	if err := s.store.Update(ctx, p); err != nil {
		log.With(logger.Err(err), logger.String("transactionId", charge.TransactionID)).
			Error("[Payment] 扣款成功但记录写入失败")
		return nil, &participant.Failure{
			Reason: fmt.Sprintf("payment captured but record update failed: %v", err),
			Data: &saga.ReplyData{
				TransactionID:             charge.TransactionID,
				RemoteSideEffectConfirmed: true,
				Confirmation: map[string]any{
					"transactionId": charge.TransactionID,
					"amount":        p.Amount,
					"approvedAt":    charge.ApprovedAt.UTC().Format(time.RFC3339Nano),
				},
			},
		}
	}

	log.With(logger.String("transactionId", charge.TransactionID)).Info("[Payment] 扣款成功")
	return &saga.ReplyData{PaymentID: p.PaymentID, TransactionID: p.TransactionID}, nil
}

// RefundPayment 处理 REFUND_PAYMENT，已退款时返回相同结果.
func (s *Service) RefundPayment(ctx context.Context, cmd *saga.Command) (*saga.ReplyData, error) {
	p, err := s.store.GetByOrderID(ctx, cmd.OrderID)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotRefundable, cmd.OrderID)
	}
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case StatusRefunded:
	case StatusSuccess:
		now := s.clock()
		p.Status = StatusRefunded
		p.RefundedAt = &now
		p.UpdatedAt = now
		if err := s.store.Update(ctx, p); err != nil {
			return nil, err
		}
		s.logger.WithContext(ctx).With(
			logger.OrderID(p.OrderID),
			logger.String("paymentId", p.PaymentID),
		).Info("[Payment] 已退款")
	default:
		return nil, fmt.Errorf("%w: order %s status %s", ErrNotRefundable, cmd.OrderID, p.Status)
	}

	return &saga.ReplyData{PaymentID: p.PaymentID, RefundedAt: p.RefundedAt}, nil
}

// Recorder 在支付存储中补录网关已确认的扣款，实现 saga.SideEffectRecorder.
type Recorder struct {
	store Store
	clock func() time.Time
	idGen func() string
}

// NewRecorder 创建补录器.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, clock: time.Now, idGen: uuid.NewString}
}

// EnsureRecorded 订单已有成功支付时返回其 ID，否则创建或修正为成功记录.
func (r *Recorder) EnsureRecorded(ctx context.Context, effect saga.SideEffect) (string, error) {
	var txnID string
	if effect.Data != nil {
		txnID = effect.Data.TransactionID
	}
	now := r.clock()

	p, err := r.store.GetByOrderID(ctx, effect.OrderID)
	switch {
	case err == nil && p.Status == StatusSuccess:
		return p.PaymentID, nil
	case err == nil:
		p.Status = StatusSuccess
		p.TransactionID = txnID
		p.FailureReason = ""
		p.UpdatedAt = now
		if err := r.store.Update(ctx, p); err != nil {
			return "", err
		}
		return p.PaymentID, nil
	case errors.Is(err, ErrPaymentNotFound):
	default:
		return "", err
	}

	p = &Payment{
		PaymentID:     r.idGen(),
		OrderID:       effect.OrderID,
		SagaID:        effect.SagaID,
		CustomerID:    effect.CustomerID,
		Amount:        effect.Amount,
		Status:        StatusSuccess,
		TransactionID: txnID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.store.Create(ctx, p); err != nil {
		return "", err
	}
	return p.PaymentID, nil
}
