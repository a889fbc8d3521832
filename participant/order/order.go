// Package order 实现订单参与方: 补偿时取消订单.
package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/participant"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// Status 订单状态.
type Status string

// 订单状态常量.
const (
	StatusPending           Status = "PENDING"
	StatusPaymentProcessing Status = "PAYMENT_PROCESSING"
	StatusPaymentCompleted  Status = "PAYMENT_COMPLETED"
	StatusInventoryReserved Status = "INVENTORY_RESERVED"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
	StatusFailed            Status = "FAILED"
)

// defaultCancelReason 未提供原因时的取消原因.
const defaultCancelReason = "Saga compensation"

// ErrOrderNotFound 订单不存在.
var ErrOrderNotFound = errors.New("order: 订单不存在")

// Order 订单记录.
type Order struct {
	OrderID       string     `json:"orderId" gorm:"column:order_id;primaryKey;size:64"`
	SagaID        string     `json:"sagaId" gorm:"column:saga_id;index;size:64"`
	Status        Status     `json:"status" gorm:"column:status;size:32"`
	FailureReason string     `json:"failureReason,omitempty" gorm:"column:failure_reason;size:255"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty" gorm:"column:cancelled_at"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName 表名.
func (Order) TableName() string {
	return "orders"
}

// Store 订单存储.
type Store interface {
	// Upsert 写入或覆盖订单.
	Upsert(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
}

// MemoryStore 基于内存的订单存储.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryStore 创建内存存储.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order)}
}

// Upsert 写入或覆盖订单.
func (m *MemoryStore) Upsert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderID] = *o
	return nil
}

// Get 查询订单.
func (m *MemoryStore) Get(_ context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// GormStore 基于 GORM 的订单存储.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 存储.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate 创建或更新表结构.
func (g *GormStore) Migrate(ctx context.Context) error {
	return g.db.WithContext(ctx).AutoMigrate(&Order{})
}

// Upsert 写入或覆盖订单.
func (g *GormStore) Upsert(ctx context.Context, o *Order) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(o).Error
}

// Get 查询订单.
func (g *GormStore) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	if err := g.db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Service 订单服务.
type Service struct {
	store  Store
	logger logger.Logger
	clock  func() time.Time
}

// NewService 创建订单服务.
func NewService(store Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, logger: log, clock: time.Now}
}

// Register 将命令处理函数注册到分发器.
func (s *Service) Register(d *participant.Dispatcher) {
	d.Register(saga.CommandCancelOrder, s.CancelOrder)
}

// CancelOrder 处理 CANCEL_ORDER.
//
// 订单不存在时以 CANCELLED 状态创建；已取消的订单保留首次取消时间.
func (s *Service) CancelOrder(ctx context.Context, cmd *saga.Command) (*saga.ReplyData, error) {
	var req saga.CancelCommandData
	if err := cmd.DecodeData(&req); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = defaultCancelReason
	}

	now := s.clock()
	o, err := s.store.Get(ctx, cmd.OrderID)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		o = &Order{OrderID: cmd.OrderID, SagaID: cmd.SagaID, CreatedAt: now}
	case err != nil:
		return nil, err
	case o.Status == StatusCancelled && o.CancelledAt != nil:
		return &saga.ReplyData{CancelledAt: o.CancelledAt}, nil
	}

	o.Status = StatusCancelled
	o.FailureReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	if err := s.store.Upsert(ctx, o); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).With(
		logger.OrderID(o.OrderID),
		logger.String("reason", reason),
	).Info("[Order] 订单已取消")
	return &saga.ReplyData{CancelledAt: o.CancelledAt}, nil
}
