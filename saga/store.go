package saga

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// 可排序字段.
const (
	SortByCreatedAt   = "createdAt"
	SortByUpdatedAt   = "updatedAt"
	SortByStatus      = "status"
	SortByTotalAmount = "orderData.totalAmount"
)

// ValidSortField 是否为允许的排序字段.
func ValidSortField(field string) bool {
	switch field {
	case SortByCreatedAt, SortByUpdatedAt, SortByStatus, SortByTotalAmount:
		return true
	}
	return false
}

// Store Saga 持久化接口.
//
// 实现需保证 Update 之后的 Get 读到最新写入，返回的 Saga 与存储内部状态互不共享.
type Store interface {
	// Create 保存新 Saga，sagaId 已存在时返回 ErrDuplicateSaga.
	Create(ctx context.Context, s *Saga) error

	// Update 整体覆盖已有 Saga，不存在时返回 ErrSagaNotFound.
	Update(ctx context.Context, s *Saga) error

	// Get 按 sagaId 查询.
	Get(ctx context.Context, sagaID string) (*Saga, error)

	// GetByOrderID 按 orderId 查询.
	GetByOrderID(ctx context.Context, orderID string) (*Saga, error)

	// List 分页查询，返回当前页数据与过滤后的总数.
	List(ctx context.Context, q ListQuery) ([]*Saga, int64, error)
}

// ListQuery 存储层查询条件.
type ListQuery struct {
	// Statuses 为空时不过滤.
	Statuses []Status
	// UpdatedBefore 非零时只返回 updatedAt 早于该时间的记录.
	UpdatedBefore time.Time
	SortBy        string
	Ascending     bool
	Offset        int
	// Limit 为 0 时不限制.
	Limit int
}

// match 判断 Saga 是否满足过滤条件.
func (q ListQuery) match(s *Saga) bool {
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, s.Status) {
		return false
	}
	if !q.UpdatedBefore.IsZero() && !s.UpdatedAt.Before(q.UpdatedBefore) {
		return false
	}
	return true
}

// MemoryStore 基于内存的 Saga 存储.
//
// 适用于单机部署或测试场景.
type MemoryStore struct {
	mu      sync.RWMutex
	sagas   map[string]*Saga
	byOrder map[string]string
}

// NewMemoryStore 创建内存存储.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sagas:   make(map[string]*Saga),
		byOrder: make(map[string]string),
	}
}

// Create 保存新 Saga.
func (m *MemoryStore) Create(_ context.Context, s *Saga) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sagas[s.SagaID]; ok {
		return ErrDuplicateSaga
	}
	m.sagas[s.SagaID] = s.Clone()
	m.byOrder[s.OrderID] = s.SagaID
	return nil
}

// Update 覆盖已有 Saga.
func (m *MemoryStore) Update(_ context.Context, s *Saga) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sagas[s.SagaID]; !ok {
		return ErrSagaNotFound
	}
	m.sagas[s.SagaID] = s.Clone()
	return nil
}

// Get 按 sagaId 查询.
func (m *MemoryStore) Get(_ context.Context, sagaID string) (*Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sagas[sagaID]
	if !ok {
		return nil, ErrSagaNotFound
	}
	return s.Clone(), nil
}

// GetByOrderID 按 orderId 查询.
func (m *MemoryStore) GetByOrderID(_ context.Context, orderID string) (*Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrSagaNotFound
	}
	return m.sagas[id].Clone(), nil
}

// List 分页查询.
func (m *MemoryStore) List(_ context.Context, q ListQuery) ([]*Saga, int64, error) {
	m.mu.RLock()
	matched := make([]*Saga, 0, len(m.sagas))
	for _, s := range m.sagas {
		if q.match(s) {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *Saga) int {
		c := compareBy(q.SortBy, a, b)
		if c == 0 {
			c = cmp.Compare(a.SagaID, b.SagaID)
		}
		if !q.Ascending {
			c = -c
		}
		return c
	})

	total := int64(len(matched))
	start := min(q.Offset, len(matched))
	end := len(matched)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(matched))
	}

	page := make([]*Saga, 0, end-start)
	for _, s := range matched[start:end] {
		page = append(page, s.Clone())
	}
	return page, total, nil
}

func compareBy(field string, a, b *Saga) int {
	switch field {
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByStatus:
		return cmp.Compare(a.Status, b.Status)
	case SortByTotalAmount:
		return cmp.Compare(a.OrderData.TotalAmount, b.OrderData.TotalAmount)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
