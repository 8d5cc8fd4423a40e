package workflow

import (
	"testing"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

func tx(id, voucher, date, account, debit, credit string) models.Transaction {
	d, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		panic(err)
	}
	return models.Transaction{
		ID:              id,
		VoucherNumber:   voucher,
		TransactionDate: d,
		AccountNumber:   account,
		Debit:           decimal.RequireFromString(debit),
		Credit:          decimal.RequireFromString(credit),
	}
}

func TestComputeStatistics_ZeroAmountsAreCounted(t *testing.T) {
	txns := []models.Transaction{
		tx("1", "V1", "2024-01-15", "3000", "0", "0"),
		tx("2", "V1", "2024-01-20", "1500", "250", "0"),
		tx("3", "V2", "2024-02-01", "3000", "0", "250"),
	}
	stats := ComputeStatistics(txns)

	if stats.TransactionCount != 3 || stats.VoucherCount != 2 || stats.AccountCount != 2 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if !stats.TotalDebit.Equal(decimal.NewFromInt(250)) || !stats.TotalCredit.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected totals %s/%s", stats.TotalDebit, stats.TotalCredit)
	}
	if len(stats.MonthlyTotals) != 2 {
		t.Fatalf("expected two months, got %+v", stats.MonthlyTotals)
	}
	jan := stats.MonthlyTotals[0]
	if jan.Month != "2024-01" || jan.TransactionCount != 2 || !jan.TotalDebit.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected january bucket %+v", jan)
	}
	acc := stats.AccountDistribution[1]
	if acc.AccountNumber != "3000" || acc.TransactionCount != 2 || !acc.TotalCredit.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected account bucket %+v", acc)
	}
	if stats.DateRange == nil || stats.DateRange.From.Format("2006-01-02") != "2024-01-15" || stats.DateRange.To.Format("2006-01-02") != "2024-02-01" {
		t.Fatalf("unexpected date range %+v", stats.DateRange)
	}
}

func TestComputeStatistics_PeriodOverridesCalendarMonth(t *testing.T) {
	y, m := 2023, 12
	line := tx("1", "V1", "2024-01-02", "3000", "10", "0")
	line.PeriodYear, line.PeriodMonth = &y, &m
	stats := ComputeStatistics([]models.Transaction{line})
	if stats.MonthlyTotals[0].Month != "2023-12" {
		t.Fatalf("expected booked period 2023-12, got %s", stats.MonthlyTotals[0].Month)
	}
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(nil)
	if stats.TransactionCount != 0 || stats.DateRange != nil || len(stats.MonthlyTotals) != 0 || !stats.TotalDebit.IsZero() {
		t.Fatalf("expected neutral statistics, got %+v", stats)
	}
}
