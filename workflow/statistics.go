package workflow

import (
	"fmt"
	"sort"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

// ComputeStatistics summarizes a population. Zero-amount lines are counted in every
// bucket and add zero to the sums.
func ComputeStatistics(txns []models.Transaction) models.PopulationStatistics {
	stats := models.PopulationStatistics{
		TransactionCount:    len(txns),
		TotalDebit:          decimal.Zero,
		TotalCredit:         decimal.Zero,
		AccountDistribution: []models.AccountStatistic{},
		MonthlyTotals:       []models.MonthlyStatistic{},
	}
	if len(txns) == 0 {
		return stats
	}

	vouchers := map[string]struct{}{}
	accounts := map[string]*models.AccountStatistic{}
	months := map[string]*models.MonthlyStatistic{}
	from, to := txns[0].TransactionDate, txns[0].TransactionDate

	for _, t := range txns {
		stats.TotalDebit = stats.TotalDebit.Add(t.Debit)
		stats.TotalCredit = stats.TotalCredit.Add(t.Credit)
		if t.VoucherNumber != "" {
			vouchers[t.VoucherNumber] = struct{}{}
		}
		if t.TransactionDate.Before(from) {
			from = t.TransactionDate
		}
		if t.TransactionDate.After(to) {
			to = t.TransactionDate
		}

		acc, ok := accounts[t.AccountNumber]
		if !ok {
			acc = &models.AccountStatistic{
				AccountNumber: t.AccountNumber,
				AccountName:   t.AccountName,
				TotalDebit:    decimal.Zero,
				TotalCredit:   decimal.Zero,
			}
			accounts[t.AccountNumber] = acc
		}
		acc.TransactionCount++
		acc.TotalDebit = acc.TotalDebit.Add(t.Debit)
		acc.TotalCredit = acc.TotalCredit.Add(t.Credit)

		key := monthKey(t)
		m, ok := months[key]
		if !ok {
			m = &models.MonthlyStatistic{Month: key, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, NetAmount: decimal.Zero}
			months[key] = m
		}
		m.TransactionCount++
		m.TotalDebit = m.TotalDebit.Add(t.Debit)
		m.TotalCredit = m.TotalCredit.Add(t.Credit)
		m.NetAmount = m.NetAmount.Add(t.NetAmount())
	}

	stats.VoucherCount = len(vouchers)
	stats.AccountCount = len(accounts)
	stats.DateRange = &models.DateRange{From: from, To: to}

	for _, a := range accounts {
		stats.AccountDistribution = append(stats.AccountDistribution, *a)
	}
	sort.Slice(stats.AccountDistribution, func(i, j int) bool {
		return stats.AccountDistribution[i].AccountNumber < stats.AccountDistribution[j].AccountNumber
	})
	for _, m := range months {
		stats.MonthlyTotals = append(stats.MonthlyTotals, *m)
	}
	sort.Slice(stats.MonthlyTotals, func(i, j int) bool {
		return stats.MonthlyTotals[i].Month < stats.MonthlyTotals[j].Month
	})
	return stats
}

// monthKey prefers the booked period over the calendar month of the date.
func monthKey(t models.Transaction) string {
	if t.PeriodYear != nil && t.PeriodMonth != nil && *t.PeriodMonth >= 1 && *t.PeriodMonth <= 12 {
		return fmt.Sprintf("%04d-%02d", *t.PeriodYear, *t.PeriodMonth)
	}
	return t.TransactionDate.Format("2006-01")
}
