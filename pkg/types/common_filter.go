package types

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

var knownOperators = []CommonFilterOperator{
	CommonFilterOperatorEq, CommonFilterOperatorNotEq,
	CommonFilterOperatorLt, CommonFilterOperatorLte,
	CommonFilterOperatorGt, CommonFilterOperatorGte,
	CommonFilterOperatorDateRange, CommonFilterOperatorRange, CommonFilterOperatorIn,
}

// CommonFilter is one condition of an admin list query. Values holds a single
// operand, except for range/date_range ([from, to]) and in.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Build constructs a GORM expression. A filter without values builds nothing.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}
	col := clause.Column{Name: f.Field}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: col, Value: f.Values[0]}, clause.Lte{Column: col, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		// [from, to): the upper bound is exclusive so whole days can be passed.
		if len(f.Values) < 2 {
			return
		}
		from, errFrom := toTime(f.Values[0])
		to, errTo := toTime(f.Values[1])
		if errFrom != nil || errTo != nil {
			return
		}
		clause.And(clause.Gte{Column: col, Value: from}, clause.Lt{Column: col, Value: to}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: col, Values: f.Values}.Build(builder)
	}
}

func toTime(v any) (time.Time, error) {
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// CheckFilters rejects filters on columns outside allowed and operators this
// package does not know, before they reach SQL.
func CheckFilters(filters []*CommonFilter, allowed ...string) error {
	for _, f := range filters {
		if f == nil {
			continue
		}
		if !lo.Contains(allowed, f.Field) {
			return fmt.Errorf("filter on %q is not supported", f.Field)
		}
		if !lo.Contains(knownOperators, f.Operator) {
			return fmt.Errorf("unknown filter operator %q", f.Operator)
		}
		if f.Operator == CommonFilterOperatorDateRange && len(f.Values) >= 2 {
			for _, v := range f.Values[:2] {
				if _, err := toTime(v); err != nil {
					return fmt.Errorf("date_range on %q: %w", f.Field, err)
				}
			}
		}
	}
	return nil
}

// FiltersAnd combines filters into one AND expression.
type FiltersAnd []*CommonFilter

func (w FiltersAnd) Build(builder clause.Builder) {
	exprs := make([]clause.Expression, 0, len(w))
	for _, f := range w {
		if f != nil && len(f.Values) > 0 {
			exprs = append(exprs, f)
		}
	}
	if len(exprs) == 0 {
		builder.WriteString("1=1")
		return
	}
	clause.And(exprs...).Build(builder)
}
