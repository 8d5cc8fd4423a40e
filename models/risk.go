package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskFactor is one weighted rule definition of the scoring catalogue.
type RiskFactor struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Weight      int          `json:"weight"`
	Category    RiskCategory `json:"category"`
}

type TriggeredFactor struct {
	Name          string       `json:"name"`
	Category      RiskCategory `json:"category"`
	Points        int          `json:"points"`
	Justification string       `json:"justification"`
}

type TransactionRiskScore struct {
	TransactionId   string            `json:"transaction_id"`
	VoucherNumber   string            `json:"voucher_number"`
	AccountNumber   string            `json:"account_number"`
	Amount          decimal.Decimal   `json:"amount"`
	TransactionDate time.Time         `json:"transaction_date"`
	Description     string            `json:"description"`
	TotalScore      int               `json:"total_score"`
	RiskLevel       RiskLevel         `json:"risk_level"`
	Factors         []TriggeredFactor `json:"factors"`
}

type RiskFactorFrequency struct {
	Name     string       `json:"name"`
	Category RiskCategory `json:"category"`
	Count    int          `json:"count"`
}

type RiskScoringResults struct {
	TotalTransactions    int                    `json:"total_transactions"`
	ScoredTransactions   []TransactionRiskScore `json:"scored_transactions"`
	HighRiskTransactions []TransactionRiskScore `json:"high_risk_transactions"`
	RiskDistribution     map[RiskLevel]int      `json:"risk_distribution"`
	TopRiskFactors       []RiskFactorFrequency  `json:"top_risk_factors"`
	RulebookVersion      string                 `json:"rulebook_version"`
}

// HighRiskRatio is the share of high-risk transactions in the whole population, 0..1.
func (r RiskScoringResults) HighRiskRatio() decimal.Decimal {
	if r.TotalTransactions == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(len(r.HighRiskTransactions))).
		Div(decimal.NewFromInt(int64(r.TotalTransactions)))
}

// CountAt returns how many reported transactions sit in the given tier.
func (r RiskScoringResults) CountAt(level RiskLevel) int {
	return r.RiskDistribution[level]
}
