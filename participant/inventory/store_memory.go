package inventory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore 基于内存的库存存储.
type MemoryStore struct {
	mu           sync.Mutex
	products     map[string]Product
	reservations map[string]Reservation
}

// NewMemoryStore 创建内存存储.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[string]Product),
		reservations: make(map[string]Reservation),
	}
}

// Seed 写入或覆盖商品.
func (m *MemoryStore) Seed(_ context.Context, products []Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range products {
		m.products[p.ProductID] = p
	}
	return nil
}

// GetProduct 查询商品.
func (m *MemoryStore) GetProduct(_ context.Context, productID string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return &p, nil
}

// ListProducts 按 productId 升序返回全部商品.
func (m *MemoryStore) ListProducts(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := slices.Collect(maps.Values(m.products))
	slices.SortFunc(products, func(a, b Product) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return products, nil
}

// ActiveReservation 返回订单处于 RESERVED 的预留.
func (m *MemoryStore) ActiveReservation(_ context.Context, orderID string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.activeLocked(orderID)
	if r == nil {
		return nil, nil
	}
	c := cloneReservation(*r)
	return &c, nil
}

func (m *MemoryStore) activeLocked(orderID string) *Reservation {
	for _, r := range m.reservations {
		if r.OrderID == orderID && r.Status == ReservationReserved {
			return &r
		}
	}
	return nil
}

// Reserve 扣减库存并保存预留.
func (m *MemoryStore) Reserve(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 先在副本上校验全部商品，全部通过后再提交
	staged := make(map[string]Product, len(r.Items))
	for _, item := range r.Items {
		p, ok := staged[item.ProductID]
		if !ok {
			if p, ok = m.products[item.ProductID]; !ok {
				return fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
			}
		}
		if !p.canReserve(item.Quantity) {
			return fmt.Errorf("%w: %s (%s)", ErrInsufficientInventory, item.ProductID, p.ProductName)
		}
		p.reserve(item.Quantity)
		p.UpdatedAt = r.CreatedAt
		staged[item.ProductID] = p
	}

	maps.Copy(m.products, staged)
	m.reservations[r.ReservationID] = cloneReservation(*r)
	return nil
}

// Release 归还预留.
func (m *MemoryStore) Release(_ context.Context, orderID string, at time.Time) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.activeLocked(orderID)
	if r == nil {
		return nil, nil
	}
	for _, item := range r.Items {
		if p, ok := m.products[item.ProductID]; ok {
			p.release(item.Quantity)
			p.UpdatedAt = at
			m.products[item.ProductID] = p
		}
	}
	r.Status = ReservationReleased
	r.UpdatedAt = at
	m.reservations[r.ReservationID] = cloneReservation(*r)

	c := cloneReservation(*r)
	return &c, nil
}

func cloneReservation(r Reservation) Reservation {
	r.Items = slices.Clone(r.Items)
	return r
}
