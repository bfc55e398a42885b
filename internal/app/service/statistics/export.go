package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fatflowers/marketplace/pkg/types"
)

const exportSheet = "commission_summary"

var exportHeader = []any{
	"id", "period_type", "period_start", "period_end", "total_payments", "total_amount",
	"total_commission", "total_vendor_payouts", "active_vendors", "vendors_with_payouts", "generated_at",
}

// ExportCommissionSummaries writes the listed summaries to an XLSX workbook.
func (s *Service) ExportCommissionSummaries(ctx context.Context, period types.PeriodType, limit int) ([]byte, error) {
	rows, err := s.ListCommissionSummaries(ctx, period, limit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			r.ID,
			string(r.PeriodType),
			r.PeriodStart.UTC().Format(time.RFC3339),
			r.PeriodEnd.UTC().Format(time.RFC3339),
			r.TotalPayments,
			r.TotalAmount.StringFixed(2),
			r.TotalCommission.StringFixed(2),
			r.TotalVendorPayouts.StringFixed(2),
			r.ActiveVendors,
			r.VendorsWithPayouts,
			r.GeneratedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
