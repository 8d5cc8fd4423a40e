// Package controls runs the deterministic control tests over a ledger population.
// A failing control is a normal result, never an error.
package controls

import (
	"sort"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/shopspring/decimal"
)

type Suite struct {
	rb  *rulebook.Rulebook
	now func() time.Time
	loc *time.Location
}

type Option func(*Suite)

// WithClock fixes "now" for the time-logic test.
func WithClock(now func() time.Time) Option {
	return func(s *Suite) { s.now = now }
}

// WithLocation sets the calendar used for weekend and holiday checks.
func WithLocation(loc *time.Location) Option {
	return func(s *Suite) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewSuite(rb *rulebook.Rulebook, opts ...Option) *Suite {
	if rb == nil {
		rb = rulebook.Default()
	}
	s := &Suite{rb: rb, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAll executes every control test in fixed order. Each test is independent.
func (s *Suite) RunAll(txns []models.Transaction, areas models.AccountAreaMap) []models.ControlTestResult {
	return []models.ControlTestResult{
		s.VoucherBalance(txns),
		s.AccountFlow(txns, areas),
		s.Duplicates(txns),
		s.TimeLogic(txns),
		s.OverallBalance(txns),
	}
}

type voucherGroup struct {
	number string
	lines  []models.Transaction
}

// groupByVoucher returns voucher groups sorted by voucher number.
// Lines without a voucher number cannot be grouped and are left out.
func groupByVoucher(txns []models.Transaction) []voucherGroup {
	idx := map[string]int{}
	var groups []voucherGroup
	for _, t := range txns {
		if t.VoucherNumber == "" {
			continue
		}
		i, ok := idx[t.VoucherNumber]
		if !ok {
			i = len(groups)
			idx[t.VoucherNumber] = i
			groups = append(groups, voucherGroup{number: t.VoucherNumber})
		}
		groups[i].lines = append(groups[i].lines, t)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].number < groups[b].number })
	return groups
}

func sumAmounts(txns []models.Transaction) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, t := range txns {
		debit = debit.Add(t.Debit)
		credit = credit.Add(t.Credit)
	}
	return debit, credit
}

func distinctAccounts(txns []models.Transaction) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range txns {
		if seen[t.AccountNumber] {
			continue
		}
		seen[t.AccountNumber] = true
		out = append(out, t.AccountNumber)
	}
	sort.Strings(out)
	return out
}

func decPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
