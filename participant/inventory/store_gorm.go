package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore 基于 GORM 的库存存储，预留与释放在同一事务内完成.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 存储.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate 创建或更新表结构.
func (g *GormStore) Migrate(ctx context.Context) error {
	return g.db.WithContext(ctx).AutoMigrate(&Product{}, &Reservation{})
}

// Seed 写入或覆盖商品.
func (g *GormStore) Seed(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&products).Error
}

// GetProduct 查询商品.
func (g *GormStore) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return getProduct(g.db.WithContext(ctx), productID)
}

func getProduct(db *gorm.DB, productID string) (*Product, error) {
	var p Product
	if err := db.Where("product_id = ?", productID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts 按 productId 升序返回全部商品.
func (g *GormStore) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := g.db.WithContext(ctx).Order("product_id").Find(&products).Error
	return products, err
}

// ActiveReservation 返回订单处于 RESERVED 的预留.
func (g *GormStore) ActiveReservation(ctx context.Context, orderID string) (*Reservation, error) {
	return activeReservation(g.db.WithContext(ctx), orderID)
}

func activeReservation(db *gorm.DB, orderID string) (*Reservation, error) {
	var r Reservation
	err := db.Where("order_id = ? AND status = ?", orderID, ReservationReserved).
		Order("created_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Reserve 扣减库存并保存预留.
func (g *GormStore) Reserve(ctx context.Context, r *Reservation) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range r.Items {
			p, err := getProduct(tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), item.ProductID)
			if err != nil {
				return err
			}
			if !p.canReserve(item.Quantity) {
				return fmt.Errorf("%w: %s (%s)", ErrInsufficientInventory, item.ProductID, p.ProductName)
			}
			p.reserve(item.Quantity)
			p.UpdatedAt = r.CreatedAt
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}
		return tx.Create(r).Error
	})
}

// Release 归还预留.
func (g *GormStore) Release(ctx context.Context, orderID string, at time.Time) (*Reservation, error) {
	var released *Reservation
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := activeReservation(tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), orderID)
		if err != nil || r == nil {
			return err
		}
		for _, item := range r.Items {
			p, err := getProduct(tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), item.ProductID)
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			p.release(item.Quantity)
			p.UpdatedAt = at
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}
		r.Status = ReservationReleased
		r.UpdatedAt = at
		if err := tx.Save(r).Error; err != nil {
			return err
		}
		released = r
		return nil
	})
	return released, err
}
