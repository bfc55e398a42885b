package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyPaymentCount StatisticType = "daily_payment_count"
	StatisticTypeDailyGmv          StatisticType = "daily_gmv"
	StatisticTypeDailyCommission   StatisticType = "daily_commission"
	StatisticTypeDailyPayouts      StatisticType = "daily_payouts"
	StatisticTypeDailyNewOrders    StatisticType = "daily_new_orders"
)

// Filter fields that only make sense for some statistic types
type StatisticFilterType string

const (
	StatisticFilterTypePaymentMethod StatisticFilterType = "payment_method"
	StatisticFilterTypePayoutMethod  StatisticFilterType = "payout_method"
)

var filterTypes = []StatisticFilterType{
	StatisticFilterTypePaymentMethod,
	StatisticFilterTypePayoutMethod,
}

var validFilters = map[StatisticFilterType][]StatisticType{
	StatisticFilterTypePaymentMethod: {StatisticTypeDailyPaymentCount, StatisticTypeDailyGmv, StatisticTypeDailyCommission},
	StatisticFilterTypePayoutMethod:  {StatisticTypeDailyPayouts},
}

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*StatisticDataItem  `json:"data_items"`
}

// GetFilters keeps the filters that apply to statisticType.
func (f *StatisticRequest) GetFilters(statisticType StatisticType) types.FiltersAnd {
	if f == nil {
		return nil
	}
	var result types.FiltersAnd
	for _, filter := range f.Filters {
		if statisticTypes, ok := validFilters[StatisticFilterType(filter.Field)]; ok && !lo.Contains(statisticTypes, statisticType) {
			continue
		}
		result = append(result, filter)
	}
	return result
}

type StatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// dayExpr formats column as YYYY-MM-DD in the connected dialect.
func dayExpr(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

func (s *Service) dailyPayments(ctx context.Context, request *StatisticRequest, id StatisticType, valueExpr string) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := dayExpr(s.db, "completed_at")
	q := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select(fmt.Sprintf("%s AS date, currency AS label, %s AS value", day, valueExpr)).
		Where("status = ?", types.PaymentStatusCompleted).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(id)}}).
		Group(day).
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyPayouts(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := dayExpr(s.db, "completed_at")
	q := s.db.WithContext(ctx).Model(&models.PayoutTransaction{}).
		Select(fmt.Sprintf("%s AS date, payout_method AS label, CAST(SUM(amount) AS TEXT) AS value", day)).
		Where("status = ?", types.PayoutStatusCompleted).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyPayouts)}}).
		Group(day).
		Group("payout_method").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewOrders(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := dayExpr(s.db, "created_at")
	q := s.db.WithContext(ctx).Model(&models.Order{}).
		Select(fmt.Sprintf("%s AS date, CAST(COUNT(*) AS TEXT) AS value", day)).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyNewOrders)}}).
		Group(day).
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *StatisticRequest, dataItem *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyPaymentCount:
		return s.dailyPayments(ctx, request, dataItem.ID, "CAST(COUNT(*) AS TEXT)")
	case StatisticTypeDailyGmv:
		return s.dailyPayments(ctx, request, dataItem.ID, "CAST(SUM(amount) AS TEXT)")
	case StatisticTypeDailyCommission:
		return s.dailyPayments(ctx, request, dataItem.ID, "CAST(SUM(commission_amount) AS TEXT)")
	case StatisticTypeDailyPayouts:
		return s.getDailyPayouts(ctx, request)
	case StatisticTypeDailyNewOrders:
		return s.getDailyNewOrders(ctx, request)
	default:
		return nil, apperr.Validation("invalid data item id: %s", dataItem.ID)
	}
}

// GetDailyStatistic computes every requested series concurrently. A series a
// filter cannot apply to comes back empty.
func (s *Service) GetDailyStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	if request == nil || len(request.DataItems) == 0 {
		return nil, apperr.Validation("data_items is required")
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	results := make(map[StatisticType][]StatisticResponseDataItem, len(request.DataItems))
	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *StatisticDataItem) {
			defer wg.Done()
			var res []StatisticResponseDataItem
			var err error
			applicable := lo.EveryBy(request.Filters, func(filter *types.CommonFilter) bool {
				ft := StatisticFilterType(filter.Field)
				return !lo.Contains(filterTypes, ft) || lo.Contains(validFilters[ft], di.ID)
			})
			if applicable {
				res, err = s.getStatistic(ctx, request, di)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[di.ID] = res
		}(item)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return &StatisticResponse{DataItems: results}, nil
}
