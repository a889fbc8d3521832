package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/participant"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// Service 库存服务.
type Service struct {
	store  Store
	logger logger.Logger
	clock  func() time.Time
	idGen  func() string
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

// NewService 创建库存服务.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: logger.NewNop(), clock: time.Now, idGen: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 将命令处理函数注册到分发器.
func (s *Service) Register(d *participant.Dispatcher) {
	d.Register(saga.CommandReserveInventory, s.ReserveInventory)
	d.Register(saga.CommandReleaseInventory, s.ReleaseInventory)
}

// SeedSampleProducts 写入示例商品目录.
func (s *Service) SeedSampleProducts(ctx context.Context) error {
	products := SampleProducts()
	now := s.clock()
	for i := range products {
		products[i].UpdatedAt = now
	}
	if err := s.store.Seed(ctx, products); err != nil {
		return err
	}
	s.logger.With(logger.Int("products", len(products))).Info("[Inventory] 示例库存已初始化")
	return nil
}

// ReserveInventory 处理 RESERVE_INVENTORY.
//
// 订单已有 RESERVED 预留时直接返回，不重复扣减.
func (s *Service) ReserveInventory(ctx context.Context, cmd *saga.Command) (*saga.ReplyData, error) {
	var req saga.InventoryCommandData
	if err := cmd.DecodeData(&req); err != nil {
		return nil, err
	}

	if existing, err := s.store.ActiveReservation(ctx, cmd.OrderID); err != nil {
		return nil, err
	} else if existing != nil {
		return reservationReply(existing), nil
	}

	now := s.clock()
	r := &Reservation{
		ReservationID: s.idGen(),
		OrderID:       cmd.OrderID,
		SagaID:        cmd.SagaID,
		Status:        ReservationReserved,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, item.ProductID)
		}
		r.Items = append(r.Items, ReservedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if err := s.store.Reserve(ctx, r); err != nil {
		s.logger.WithContext(ctx).With(
			logger.OrderID(cmd.OrderID),
			logger.Err(err),
		).Warn("[Inventory] 库存预留失败")
		return nil, err
	}

	s.logger.WithContext(ctx).With(
		logger.OrderID(cmd.OrderID),
		logger.String("reservationId", r.ReservationID),
	).Info("[Inventory] 库存已预留")
	return reservationReply(r), nil
}

// ReleaseInventory 处理 RELEASE_INVENTORY，没有预留时回复 released=false.
func (s *Service) ReleaseInventory(ctx context.Context, cmd *saga.Command) (*saga.ReplyData, error) {
	r, err := s.store.Release(ctx, cmd.OrderID, s.clock())
	if err != nil {
		return nil, err
	}

	released := r != nil
	log := s.logger.WithContext(ctx).With(logger.OrderID(cmd.OrderID))
	if released {
		log.With(logger.String("reservationId", r.ReservationID)).Info("[Inventory] 库存已释放")
	} else {
		log.Info("[Inventory] 订单没有有效预留")
	}
	return &saga.ReplyData{Released: &released}, nil
}

func reservationReply(r *Reservation) *saga.ReplyData {
	items := make([]saga.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = saga.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return &saga.ReplyData{ReservationID: r.ReservationID, Items: items}
}
