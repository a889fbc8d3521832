// Package payment 实现支付参与方: 扣款、退款以及远程副作用补录.
package payment

import (
	"context"
	"errors"
	"time"
)

// Status 支付状态.
type Status string

// 支付状态常量.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

// 预定义错误.
var (
	ErrPaymentNotFound = errors.New("payment: 支付记录不存在")
	ErrDuplicate       = errors.New("payment: 支付记录已存在")
	ErrNotRefundable   = errors.New("payment: 没有可退款的成功支付")
	ErrDeclined        = errors.New("payment: 支付被拒绝")
)

// Payment 支付记录，每个订单一条.
type Payment struct {
	PaymentID     string     `json:"paymentId" gorm:"column:payment_id;primaryKey;size:64"`
	OrderID       string     `json:"orderId" gorm:"column:order_id;uniqueIndex;size:64"`
	SagaID        string     `json:"sagaId" gorm:"column:saga_id;index;size:64"`
	CustomerID    string     `json:"customerId" gorm:"column:customer_id;size:64"`
	Amount        float64    `json:"amount" gorm:"column:amount"`
	Status        Status     `json:"status" gorm:"column:status;size:16"`
	TransactionID string     `json:"transactionId,omitempty" gorm:"column:transaction_id;size:64"`
	FailureReason string     `json:"failureReason,omitempty" gorm:"column:failure_reason;size:255"`
	RefundedAt    *time.Time `json:"refundedAt,omitempty" gorm:"column:refunded_at"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName 表名.
func (Payment) TableName() string {
	return "payments"
}

// Store 支付记录存储.
type Store interface {
	// Create 新建记录，订单已有记录时返回 ErrDuplicate.
	Create(ctx context.Context, p *Payment) error
	// Update 覆盖记录，不存在时返回 ErrPaymentNotFound.
	Update(ctx context.Context, p *Payment) error
	Get(ctx context.Context, paymentID string) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
}
