package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ControlTestResult is the outcome of one control test run.
type ControlTestResult struct {
	TestName    ControlTestName   `json:"test_name"`
	Passed      bool              `json:"passed"`
	ErrorCount  int               `json:"error_count"`
	Evidence    []ControlEvidence `json:"evidence"`
	Description string            `json:"description"`
	Severity    Severity          `json:"severity"`
}

// ControlEvidence holds the fields any of the five tests may report.
// Each test fills only the fields relevant to it.
type ControlEvidence struct {
	// voucher balance
	VoucherNumber    string           `json:"voucher_number,omitempty"`
	Difference       *decimal.Decimal `json:"difference,omitempty"`
	TransactionCount int              `json:"transaction_count,omitempty"`
	Accounts         []string         `json:"accounts,omitempty"`

	// account flow / time logic
	TransactionId string   `json:"transaction_id,omitempty"`
	AccountNumber string   `json:"account_number,omitempty"`
	Area          string   `json:"area,omitempty"`
	ExpectedAreas []string `json:"expected_areas,omitempty"`
	Reason        string   `json:"reason,omitempty"`

	// duplicates
	Date        *time.Time        `json:"date,omitempty"`
	Debit       *decimal.Decimal  `json:"debit,omitempty"`
	Credit      *decimal.Decimal  `json:"credit,omitempty"`
	Description string            `json:"description,omitempty"`
	Members     []DuplicateMember `json:"members,omitempty"`

	// time logic
	IssueType TimeIssueType `json:"issue_type,omitempty"`

	// overall balance
	TotalDebit  *decimal.Decimal `json:"total_debit,omitempty"`
	TotalCredit *decimal.Decimal `json:"total_credit,omitempty"`
}

type DuplicateMember struct {
	TransactionId string `json:"transaction_id"`
	VoucherNumber string `json:"voucher_number"`
}

// PassRate returns passed/total*100, or 100 when there are no results.
func PassRate(results []ControlTestResult) decimal.Decimal {
	if len(results) == 0 {
		return decimal.NewFromInt(100)
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return decimal.NewFromInt(int64(passed)).
		Div(decimal.NewFromInt(int64(len(results)))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// IsCriticalFailure reports a failed test carrying error severity.
func (r ControlTestResult) IsCriticalFailure() bool {
	return !r.Passed && r.Severity == SeverityError
}
