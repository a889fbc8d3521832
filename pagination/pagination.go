// Package pagination 提供页码分页参数与结果元数据.
package pagination

const (
	// DefaultPage 默认页码.
	DefaultPage = 1
	// DefaultLimit 默认每页数量.
	DefaultLimit = 10
	// MaxLimit 最大每页数量.
	MaxLimit = 100
)

// Pagination 分页参数.
type Pagination struct {
	Page  int // 页码，从 1 开始
	Limit int // 每页数量
}

// New 创建分页参数，自动应用默认值和边界校验.
func New(page, limit int) Pagination {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset 计算偏移量.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta 分页结果元数据.
type Meta struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewMeta 根据总数计算分页元数据.
func NewMeta(p Pagination, total int64) Meta {
	var pages int
	if total > 0 && p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Meta{
		CurrentPage: p.Page,
		TotalPages:  pages,
		TotalCount:  total,
		Limit:       p.Limit,
		HasNextPage: p.Page < pages,
		HasPrevPage: p.Page > 1,
	}
}
