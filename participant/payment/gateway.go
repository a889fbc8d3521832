package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudresty/ulid"
)

// ChargeRequest 扣款请求.
type ChargeRequest struct {
	OrderID    string
	CustomerID string
	Amount     float64
}

// Charge 网关扣款结果.
type Charge struct {
	TransactionID string
	ApprovedAt    time.Time
}

// Gateway 支付网关.
//
// 拒绝扣款时返回包装了 ErrDeclined 的错误，其他错误视为网关故障.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// SimulatedGateway 模拟网关，金额不超过 MaxAmount 时批准.
type SimulatedGateway struct {
	// MaxAmount 单笔上限，0 表示不限
	MaxAmount float64
}

// Charge 模拟扣款.
func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: 金额无效 %.2f", ErrDeclined, req.Amount)
	}
	if g.MaxAmount > 0 && req.Amount > g.MaxAmount {
		return nil, fmt.Errorf("%w: 金额 %.2f 超过单笔上限 %.2f", ErrDeclined, req.Amount, g.MaxAmount)
	}

	id, err := ulid.New()
	if err != nil {
		return nil, err
	}
	return &Charge{TransactionID: "TXN-" + id, ApprovedAt: time.Now()}, nil
}
