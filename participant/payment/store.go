package payment

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
)

// MemoryStore 基于内存的支付存储.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]Payment
	byOrder  map[string]string
}

// NewMemoryStore 创建内存存储.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]Payment),
		byOrder:  make(map[string]string),
	}
}

// Create 新建记录.
func (m *MemoryStore) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byOrder[p.OrderID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.payments[p.PaymentID]; ok {
		return ErrDuplicate
	}
	m.payments[p.PaymentID] = *p
	m.byOrder[p.OrderID] = p.PaymentID
	return nil
}

// Update 覆盖记录.
func (m *MemoryStore) Update(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[p.PaymentID]; !ok {
		return ErrPaymentNotFound
	}
	m.payments[p.PaymentID] = *p
	return nil
}

// Get 按 paymentId 查询.
func (m *MemoryStore) Get(_ context.Context, paymentID string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

// GetByOrderID 按 orderId 查询.
func (m *MemoryStore) GetByOrderID(_ context.Context, orderID string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	p := m.payments[id]
	return &p, nil
}

// GormStore 基于 GORM 的支付存储.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 存储.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate 创建或更新表结构.
func (g *GormStore) Migrate(ctx context.Context) error {
	return g.db.WithContext(ctx).AutoMigrate(&Payment{})
}

// Create 新建记录.
func (g *GormStore) Create(ctx context.Context, p *Payment) error {
	err := g.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// Update 覆盖记录.
func (g *GormStore) Update(ctx context.Context, p *Payment) error {
	res := g.db.WithContext(ctx).Model(&Payment{}).
		Where("payment_id = ?", p.PaymentID).
		Select("*").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := g.Get(ctx, p.PaymentID); err != nil {
			return err
		}
	}
	return nil
}

// Get 按 paymentId 查询.
func (g *GormStore) Get(ctx context.Context, paymentID string) (*Payment, error) {
	return g.first(ctx, "payment_id = ?", paymentID)
}

// GetByOrderID 按 orderId 查询.
func (g *GormStore) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return g.first(ctx, "order_id = ?", orderID)
}

func (g *GormStore) first(ctx context.Context, query, arg string) (*Payment, error) {
	var p Payment
	if err := g.db.WithContext(ctx).Where(query, arg).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}
