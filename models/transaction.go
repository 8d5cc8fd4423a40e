package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDate    = errors.New("invalid transaction date")
	ErrNegativeAmount = errors.New("transaction amounts must be non-negative")
)

// Transaction is one normalized ledger posting line.
// The engine never mutates a Transaction after it has been read.
// HasTimeOfDay is false when the source only carried a calendar date.
type Transaction struct {
	ID              string          `json:"id"`
	VoucherNumber   string          `json:"voucher_number"`
	TransactionDate time.Time       `json:"transaction_date"`
	HasTimeOfDay    bool            `json:"has_time_of_day"`
	AccountNumber   string          `json:"account_number"`
	AccountName     string          `json:"account_name"`
	AccountCategory string          `json:"account_category"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	Description     string          `json:"description"`
	PeriodYear      *int            `json:"period_year,omitempty"`
	PeriodMonth     *int            `json:"period_month,omitempty"`
}

// NetAmount is debit minus credit.
func (t Transaction) NetAmount() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

func (t Transaction) AbsAmount() decimal.Decimal {
	return t.NetAmount().Abs()
}

// RawTransaction is a row as delivered by a transaction source, before coercion.
// Amounts may be missing; dates are ISO strings.
type RawTransaction struct {
	ID              string              `json:"id"`
	VoucherNumber   string              `json:"voucher_number"`
	TransactionDate string              `json:"transaction_date"`
	AccountNumber   string              `json:"account_number"`
	AccountName     string              `json:"account_name"`
	AccountCategory string              `json:"account_category"`
	Debit           decimal.NullDecimal `json:"debit"`
	Credit          decimal.NullDecimal `json:"credit"`
	Description     *string             `json:"description"`
	PeriodYear      *int                `json:"period_year"`
	PeriodMonth     *int                `json:"period_month"`
}

var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", false},
}

// ParseTransactionDate accepts the ISO forms delivered by the ledger store.
// Dates without an offset are interpreted in loc.
func ParseTransactionDate(value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}
	for _, l := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if l.layout == time.RFC3339 {
			t, err = time.Parse(l.layout, value)
			if err == nil {
				t = t.In(loc)
			}
		} else {
			t, err = time.ParseInLocation(l.layout, value, loc)
		}
		if err == nil {
			return t, l.hasTime, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}

// ToTransaction coerces a raw row. Missing amounts become zero.
func (r RawTransaction) ToTransaction(loc *time.Location) (Transaction, error) {
	date, hasTime, err := ParseTransactionDate(r.TransactionDate, loc)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	debit := utils.NullDecimalOrZero(r.Debit)
	credit := utils.NullDecimalOrZero(r.Credit)
	if debit.IsNegative() || credit.IsNegative() {
		return Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, ErrNegativeAmount)
	}
	return Transaction{
		ID:              r.ID,
		VoucherNumber:   strings.TrimSpace(r.VoucherNumber),
		TransactionDate: date,
		HasTimeOfDay:    hasTime,
		AccountNumber:   strings.TrimSpace(r.AccountNumber),
		AccountName:     r.AccountName,
		AccountCategory: r.AccountCategory,
		Debit:           debit,
		Credit:          credit,
		Description:     utils.DereferencePtr(r.Description),
		PeriodYear:      r.PeriodYear,
		PeriodMonth:     r.PeriodMonth,
	}, nil
}

// RowError describes a raw row dropped at the boundary. Row is 1-based.
type RowError struct {
	Row           int    `json:"row"`
	TransactionId string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason"`
	Err           error  `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ToTransactions converts a batch. Malformed rows are skipped and returned as rejected
// so the rest of the population can still be analyzed.
func ToTransactions(rows []RawTransaction, loc *time.Location) ([]Transaction, []RowError) {
	out := make([]Transaction, 0, len(rows))
	var rejected []RowError
	for i, r := range rows {
		t, err := r.ToTransaction(loc)
		if err != nil {
			rejected = append(rejected, RowError{Row: i + 1, TransactionId: r.ID, Reason: err.Error(), Err: err})
			continue
		}
		out = append(out, t)
	}
	return out, rejected
}

// AccountAreaMap maps account number to classification area (sales, purchases, ...).
type AccountAreaMap map[string]string

// PopulationRef identifies where a population came from.
type PopulationRef struct {
	ClientId    string `json:"client_id"`
	DataVersion string `json:"data_version,omitempty"`
}
