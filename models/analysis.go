package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type AccountStatistic struct {
	AccountNumber    string          `json:"account_number"`
	AccountName      string          `json:"account_name"`
	TransactionCount int             `json:"transaction_count"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
}

type MonthlyStatistic struct {
	// Month is formatted YYYY-MM.
	Month            string          `json:"month"`
	TransactionCount int             `json:"transaction_count"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	NetAmount        decimal.Decimal `json:"net_amount"`
}

type PopulationStatistics struct {
	TransactionCount    int                `json:"transaction_count"`
	VoucherCount        int                `json:"voucher_count"`
	AccountCount        int                `json:"account_count"`
	TotalDebit          decimal.Decimal    `json:"total_debit"`
	TotalCredit         decimal.Decimal    `json:"total_credit"`
	DateRange           *DateRange         `json:"date_range,omitempty"`
	AccountDistribution []AccountStatistic `json:"account_distribution"`
	MonthlyTotals       []MonthlyStatistic `json:"monthly_totals"`
}

type AIAnomaly struct {
	Description   string `json:"description"`
	TransactionId string `json:"transaction_id,omitempty"`
	Severity      string `json:"severity,omitempty"`
}

// AIFindings is the coerced payload of the external anomaly/AI collaborator.
type AIFindings struct {
	AnalysisType    string      `json:"analysis_type"`
	KeyFindings     []string    `json:"key_findings,omitempty"`
	Anomalies       []AIAnomaly `json:"anomalies,omitempty"`
	Patterns        []string    `json:"patterns,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
	ConfidenceScore *float64    `json:"confidence_score,omitempty"`
}

// AggregatedAnalysis bundles the independent results of one analysis run.
// AIFindings is nil when the collaborator is disabled or failed.
type AggregatedAnalysis struct {
	RunId        string               `json:"run_id"`
	Population   PopulationRef        `json:"population"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Statistics   PopulationStatistics `json:"statistics"`
	ControlTests []ControlTestResult  `json:"control_tests"`
	RiskScoring  RiskScoringResults   `json:"risk_scoring"`
	AIFindings   *AIFindings          `json:"ai_findings,omitempty"`

	// RejectedRows lists source rows left out of the population because they could not be coerced.
	RejectedRowCount int        `json:"rejected_row_count"`
	RejectedRows     []RowError `json:"rejected_rows,omitempty"`
}
