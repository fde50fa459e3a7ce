package repository

import "gorm.io/gorm"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page of an admin listing.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalized clamps the request into the served range.
func (p PageRequest) Normalized() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// paginate is a gorm scope applying a normalized request.
func paginate(p PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newPageResult[T any](p PageRequest, total int64, items []T) PageResult[T] {
	pages := 0
	if total > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: pages,
	}
}
