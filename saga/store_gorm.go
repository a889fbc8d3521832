package saga

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sagaRecord Saga 表结构.
//
// 过滤与排序用到的字段单独成列，完整状态以 JSON 存放在 document 列.
type sagaRecord struct {
	SagaID      string    `gorm:"column:saga_id;primaryKey;size:64"`
	OrderID     string    `gorm:"column:order_id;uniqueIndex;size:64"`
	Status      string    `gorm:"column:status;index;size:32"`
	CurrentStep string    `gorm:"column:current_step;size:32"`
	TotalAmount float64   `gorm:"column:total_amount"`
	Document    string    `gorm:"column:document;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;index;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"column:updated_at;index;autoUpdateTime:false"`
}

func (sagaRecord) TableName() string {
	return "sagas"
}

var sortColumns = map[string]string{
	SortByCreatedAt:   "created_at",
	SortByUpdatedAt:   "updated_at",
	SortByStatus:      "status",
	SortByTotalAmount: "total_amount",
}

// GormStore 基于 GORM 的 Saga 存储，支持 MySQL、PostgreSQL、SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 存储.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate 创建或更新表结构.
func (g *GormStore) Migrate(ctx context.Context) error {
	return g.db.WithContext(ctx).AutoMigrate(&sagaRecord{})
}

func toRecord(s *Saga) (*sagaRecord, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return &sagaRecord{
		SagaID:      s.SagaID,
		OrderID:     s.OrderID,
		Status:      string(s.Status),
		CurrentStep: string(s.CurrentStep),
		TotalAmount: s.OrderData.TotalAmount,
		Document:    string(doc),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

func (r *sagaRecord) toSaga() (*Saga, error) {
	var s Saga
	if err := json.Unmarshal([]byte(r.Document), &s); err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	return &s, nil
}

// Create 保存新 Saga.
func (g *GormStore) Create(ctx context.Context, s *Saga) error {
	rec, err := toRecord(s)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSaga
		}
		return err
	}
	return nil
}

// Update 覆盖已有 Saga.
func (g *GormStore) Update(ctx context.Context, s *Saga) error {
	rec, err := toRecord(s)
	if err != nil {
		return err
	}

	res := g.db.WithContext(ctx).Model(&sagaRecord{}).
		Where("saga_id = ?", s.SagaID).
		Updates(map[string]any{
			"status":       rec.Status,
			"current_step": rec.CurrentStep,
			"document":     rec.Document,
			"updated_at":   rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL 在值未变化时返回 0 行，需要再确认记录是否存在.
	var count int64
	if err := g.db.WithContext(ctx).Model(&sagaRecord{}).Where("saga_id = ?", s.SagaID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrSagaNotFound
	}
	return nil
}

// Get 按 sagaId 查询.
func (g *GormStore) Get(ctx context.Context, sagaID string) (*Saga, error) {
	return g.first(ctx, "saga_id = ?", sagaID)
}

// GetByOrderID 按 orderId 查询.
func (g *GormStore) GetByOrderID(ctx context.Context, orderID string) (*Saga, error) {
	return g.first(ctx, "order_id = ?", orderID)
}

func (g *GormStore) first(ctx context.Context, query string, arg string) (*Saga, error) {
	var rec sagaRecord
	if err := g.db.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSagaNotFound
		}
		return nil, err
	}
	return rec.toSaga()
}

// List 分页查询.
func (g *GormStore) List(ctx context.Context, q ListQuery) ([]*Saga, int64, error) {
	db := g.db.WithContext(ctx).Model(&sagaRecord{})
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		db = db.Where("status IN ?", statuses)
	}
	if !q.UpdatedBefore.IsZero() {
		db = db.Where("updated_at < ?", q.UpdatedBefore)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[SortByCreatedAt]
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: !q.Ascending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "saga_id"}, Desc: !q.Ascending}).
		Offset(q.Offset)
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var records []sagaRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	sagas := make([]*Saga, 0, len(records))
	for i := range records {
		s, err := records[i].toSaga()
		if err != nil {
			return nil, 0, err
		}
		sagas = append(sagas, s)
	}
	return sagas, total, nil
}
