// Package inventory 实现库存参与方: 预留与释放.
package inventory

import (
	"context"
	"errors"
	"time"
)

// ReservationStatus 预留状态.
type ReservationStatus string

// 预留状态常量.
const (
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationReleased ReservationStatus = "RELEASED"
)

// 预定义错误.
var (
	ErrProductNotFound       = errors.New("inventory: 商品不存在")
	ErrInsufficientInventory = errors.New("inventory: 库存不足")
	ErrInvalidQuantity       = errors.New("inventory: 数量无效")
)

// Product 商品库存.
type Product struct {
	ProductID         string    `json:"productId" gorm:"column:product_id;primaryKey;size:64"`
	ProductName       string    `json:"productName" gorm:"column:product_name;size:128"`
	AvailableQuantity int       `json:"availableQuantity" gorm:"column:available_quantity"`
	ReservedQuantity  int       `json:"reservedQuantity" gorm:"column:reserved_quantity"`
	Price             float64   `json:"price" gorm:"column:price"`
	UpdatedAt         time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

// TableName 表名.
func (Product) TableName() string {
	return "inventory_products"
}

// canReserve 可用库存是否足够.
func (p *Product) canReserve(quantity int) bool {
	return p.AvailableQuantity >= quantity
}

func (p *Product) reserve(quantity int) {
	p.AvailableQuantity -= quantity
	p.ReservedQuantity += quantity
}

func (p *Product) release(quantity int) {
	p.AvailableQuantity += quantity
	p.ReservedQuantity = max(p.ReservedQuantity-quantity, 0)
}

// ReservedItem 预留明细.
type ReservedItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Reservation 订单的库存预留.
type Reservation struct {
	ReservationID string            `json:"reservationId" gorm:"column:reservation_id;primaryKey;size:64"`
	OrderID       string            `json:"orderId" gorm:"column:order_id;index;size:64"`
	SagaID        string            `json:"sagaId" gorm:"column:saga_id;size:64"`
	Items         []ReservedItem    `json:"items" gorm:"column:items;type:text;serializer:json"`
	Status        ReservationStatus `json:"status" gorm:"column:status;size:16"`
	CreatedAt     time.Time         `json:"createdAt" gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time         `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName 表名.
func (Reservation) TableName() string {
	return "inventory_reservations"
}

// Store 库存存储.
//
// Reserve 与 Release 必须原子执行: 任一商品失败时不修改任何库存.
type Store interface {
	// Seed 写入或覆盖商品.
	Seed(ctx context.Context, products []Product) error
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// ActiveReservation 返回订单处于 RESERVED 的预留，不存在时返回 nil, nil.
	ActiveReservation(ctx context.Context, orderID string) (*Reservation, error)

	// Reserve 扣减可用库存并保存预留.
	Reserve(ctx context.Context, r *Reservation) error

	// Release 归还订单 RESERVED 预留的库存并标记 RELEASED，没有预留时返回 nil, nil.
	Release(ctx context.Context, orderID string, at time.Time) (*Reservation, error)
}

// SampleProducts 示例商品目录.
func SampleProducts() []Product {
	return []Product{
		{ProductID: "PROD001", ProductName: "Laptop", AvailableQuantity: 50, Price: 999.99},
		{ProductID: "PROD002", ProductName: "Mouse", AvailableQuantity: 200, Price: 29.99},
		{ProductID: "PROD003", ProductName: "Keyboard", AvailableQuantity: 150, Price: 79.99},
		{ProductID: "PROD004", ProductName: "Monitor", AvailableQuantity: 30, Price: 299.99},
		{ProductID: "PROD005", ProductName: "Headphones", AvailableQuantity: 100, Price: 89.99},
	}
}
