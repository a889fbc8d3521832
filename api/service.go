// Package api 提供编排器的 HTTP 接口：下单、查询 Saga 与人工重试.
//
// 路由:
//
//	POST /api/orchestrator/orders
//	GET  /api/orchestrator/sagas
//	GET  /api/orchestrator/sagas/{sagaId}
//	GET  /api/orchestrator/sagas/order/{orderId}
//	POST /api/orchestrator/sagas/{sagaId}/retry
//
// 响应统一使用 {code, message, data} 格式.
package api

import (
	"context"

	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// Service 编排器能力，由 *saga.Orchestrator 实现.
type Service interface {
	StartSaga(ctx context.Context, data saga.OrderData) (*saga.Saga, error)
	RetrySaga(ctx context.Context, sagaID string) (*saga.Saga, error)
	GetSaga(ctx context.Context, sagaID string) (*saga.Saga, error)
	GetSagaByOrderID(ctx context.Context, orderID string) (*saga.Saga, error)
	ListSagas(ctx context.Context, opts saga.ListOptions) (*saga.ListResult, error)
}

var _ Service = (*saga.Orchestrator)(nil)

// CreateOrderRequest 下单请求，totalAmount 由服务端计算，请求中的值被忽略.
type CreateOrderRequest struct {
	CustomerID string             `json:"customerId" validate:"notblank"`
	Items      []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// OrderItemRequest 订单项.
type OrderItemRequest struct {
	ProductID   string  `json:"productId" validate:"notblank"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
}

func (r CreateOrderRequest) orderData() saga.OrderData {
	items := make([]saga.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = saga.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		}
	}
	return saga.OrderData{CustomerID: r.CustomerID, Items: items}
}

// CreateOrderResponse 下单结果.
type CreateOrderResponse struct {
	SagaID  string      `json:"sagaId"`
	OrderID string      `json:"orderId"`
	Status  saga.Status `json:"status"`
}

// ListSagasRequest 列表查询参数.
type ListSagasRequest struct {
	Page      int      `validate:"gte=0"`
	Limit     int      `validate:"gte=0"`
	Statuses  []string `validate:"dive,oneof=STARTED PAYMENT_PROCESSING PAYMENT_COMPLETED INVENTORY_RESERVING INVENTORY_RESERVED COMPLETED COMPENSATING COMPENSATED FAILED"`
	SortBy    string
	SortOrder string `validate:"omitempty,oneof=asc desc ASC DESC"`
}

// sagaIDRequest 按 sagaId 操作的请求.
type sagaIDRequest struct {
	SagaID string `validate:"notblank"`
}

// orderIDRequest 按 orderId 查询的请求.
type orderIDRequest struct {
	OrderID string `validate:"notblank"`
}

// RetryResponse 重试结果.
type RetryResponse struct {
	SagaID      string        `json:"sagaId"`
	Status      saga.Status   `json:"status"`
	CurrentStep saga.StepName `json:"currentStep"`
}
