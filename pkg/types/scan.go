package types

import (
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

const (
	DefaultScanSize = 20
	MaxScanSize     = 200
)

// ScanRequest is the body of admin list endpoints.
type ScanRequest struct {
	Filters   []*CommonFilter `json:"filters"`
	From      int             `json:"from"`
	Size      int             `json:"size"`
	SortBy    string          `json:"sort_by"`
	SortOrder string          `json:"sort_order"`
}

type ScanResult[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
}

// ScanColumns whitelists what a table may be filtered and sorted by. The
// first sort column is the default.
type ScanColumns struct {
	Filter []string
	Sort   []string
}

// Scan counts and pages the rows of tx, which must already be scoped to T's
// model, newest first unless sort_order is "asc". Unknown columns are
// validation errors.
func Scan[T any](tx *gorm.DB, req *ScanRequest, cols ScanColumns) (*ScanResult[T], error) {
	if req == nil {
		req = &ScanRequest{}
	}
	if err := CheckFilters(req.Filters, cols.Filter...); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	sortBy := req.SortBy
	if sortBy == "" && len(cols.Sort) > 0 {
		sortBy = cols.Sort[0]
	}
	if !lo.Contains(cols.Sort, sortBy) {
		return nil, apperr.Validation("cannot sort by %q", req.SortBy)
	}
	size := req.Size
	switch {
	case size <= 0:
		size = DefaultScanSize
	case size > MaxScanSize:
		size = MaxScanSize
	}

	base := tx.Session(&gorm.Session{})
	if len(req.Filters) > 0 {
		base = base.Where(clause.Where{Exprs: []clause.Expression{FiltersAnd(req.Filters)}})
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	q := base.Limit(size).Offset(max(req.From, 0)).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"},
			{Column: clause.Column{Name: "id"}, Desc: req.SortOrder != "asc"},
		}})
	rows := []*T{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return &ScanResult[T]{Items: rows, Total: total}, nil
}
