package saga

import (
	"context"
	"strings"

	"github.com/Tsukikage7/saga-orchestrator/pagination"
)

// ListOptions 列表查询参数.
type ListOptions struct {
	Page     int
	Limit    int
	Statuses []Status
	// SortBy 允许 createdAt、updatedAt、status、orderData.totalAmount，其余按 createdAt.
	SortBy string
	// SortOrder 为 asc 时升序，其余降序.
	SortOrder string
}

// ListResult 列表查询结果.
type ListResult struct {
	Data       []*Saga         `json:"data"`
	Pagination pagination.Meta `json:"pagination"`
}

// GetSaga 按 sagaId 查询.
func (o *Orchestrator) GetSaga(ctx context.Context, sagaID string) (*Saga, error) {
	return o.store.Get(ctx, sagaID)
}

// GetSagaByOrderID 按 orderId 查询.
func (o *Orchestrator) GetSagaByOrderID(ctx context.Context, orderID string) (*Saga, error) {
	return o.store.GetByOrderID(ctx, orderID)
}

// ListSagas 分页查询 Saga.
func (o *Orchestrator) ListSagas(ctx context.Context, opts ListOptions) (*ListResult, error) {
	p := pagination.New(opts.Page, opts.Limit)

	sortBy := opts.SortBy
	if !ValidSortField(sortBy) {
		sortBy = SortByCreatedAt
	}

	sagas, total, err := o.store.List(ctx, ListQuery{
		Statuses:  opts.Statuses,
		SortBy:    sortBy,
		Ascending: strings.EqualFold(opts.SortOrder, "asc"),
		Offset:    p.Offset(),
		Limit:     p.Limit,
	})
	if err != nil {
		return nil, err
	}
	if sagas == nil {
		sagas = []*Saga{}
	}
	return &ListResult{Data: sagas, Pagination: pagination.NewMeta(p, total)}, nil
}
