package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionSource supplies the raw ledger population of a client.
// An empty dataVersion means every version.
type TransactionSource interface {
	GetTransactions(ctx context.Context, clientId string, dataVersion string) ([]RawTransaction, error)
}

// ClassificationSource supplies account number -> classification area.
type ClassificationSource interface {
	GetAccountAreas(ctx context.Context, clientId string) (AccountAreaMap, error)
}

type LedgerTransaction struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	ClientId        string              `gorm:"size:64;not null;index:idx_lt_client_version,priority:1" json:"client_id"`
	DataVersion     string              `gorm:"size:64;index:idx_lt_client_version,priority:2" json:"data_version"`
	ExternalId      string              `gorm:"size:100" json:"external_id"`
	VoucherNumber   string              `gorm:"size:100;index" json:"voucher_number"`
	TransactionDate string              `gorm:"size:40;not null" json:"transaction_date"`
	AccountNumber   string              `gorm:"size:100;index" json:"account_number"`
	Debit           decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"debit"`
	Credit          decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"credit"`
	Description     *string             `gorm:"type:text" json:"description"`
	PeriodYear      *int                `json:"period_year"`
	PeriodMonth     *int                `json:"period_month"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type AccountClassification struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ClientId      string    `gorm:"size:64;not null;uniqueIndex:idx_ac_client_account,priority:1" json:"client_id"`
	AccountNumber string    `gorm:"size:100;not null;uniqueIndex:idx_ac_client_account,priority:2" json:"account_number"`
	AccountName   string    `gorm:"size:255" json:"account_name"`
	Category      string    `gorm:"size:100" json:"category"`
	Area          string    `gorm:"size:50" json:"area"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type GormTransactionSource struct {
	db *gorm.DB
}

// NewGormTransactionSource falls back to the shared connection when db is nil.
func NewGormTransactionSource(db *gorm.DB) *GormTransactionSource {
	return &GormTransactionSource{db: db}
}

func (s *GormTransactionSource) conn() *gorm.DB {
	if s.db != nil {
		return s.db
	}
	return config.GetDB()
}

type ledgerRow struct {
	ExternalId      string
	VoucherNumber   string
	TransactionDate string
	AccountNumber   string
	AccountName     *string
	Category        *string
	Debit           decimal.NullDecimal
	Credit          decimal.NullDecimal
	Description     *string
	PeriodYear      *int
	PeriodMonth     *int
}

func (s *GormTransactionSource) GetTransactions(ctx context.Context, clientId string, dataVersion string) ([]RawTransaction, error) {
	if strings.TrimSpace(clientId) == "" {
		return nil, errors.New("client id is required")
	}
	db := s.conn()
	if db == nil {
		return nil, errors.New("database not connected")
	}

	query := db.WithContext(ctx).
		Table("ledger_transactions AS lt").
		Select(`lt.external_id, lt.voucher_number, lt.transaction_date, lt.account_number,
			ac.account_name, ac.category, lt.debit, lt.credit, lt.description, lt.period_year, lt.period_month`).
		Joins("LEFT JOIN account_classifications AS ac ON ac.client_id = lt.client_id AND ac.account_number = lt.account_number").
		Where("lt.client_id = ?", clientId)
	if dataVersion != "" {
		query = query.Where("lt.data_version = ?", dataVersion)
	}

	var rows []ledgerRow
	if err := query.Order("lt.transaction_date, lt.id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]RawTransaction, 0, len(rows))
	for _, r := range rows {
		raw := RawTransaction{
			ID:              r.ExternalId,
			VoucherNumber:   r.VoucherNumber,
			TransactionDate: r.TransactionDate,
			AccountNumber:   r.AccountNumber,
			Debit:           r.Debit,
			Credit:          r.Credit,
			Description:     r.Description,
			PeriodYear:      r.PeriodYear,
			PeriodMonth:     r.PeriodMonth,
		}
		if r.AccountName != nil {
			raw.AccountName = *r.AccountName
		}
		if r.Category != nil {
			raw.AccountCategory = *r.Category
		}
		out = append(out, raw)
	}
	return out, nil
}

type GormClassificationSource struct {
	db *gorm.DB
}

func NewGormClassificationSource(db *gorm.DB) *GormClassificationSource {
	return &GormClassificationSource{db: db}
}

func (s *GormClassificationSource) GetAccountAreas(ctx context.Context, clientId string) (AccountAreaMap, error) {
	db := s.db
	if db == nil {
		db = config.GetDB()
	}
	if db == nil {
		return nil, errors.New("database not connected")
	}
	var records []AccountClassification
	if err := db.WithContext(ctx).Where("client_id = ? AND area <> ''", clientId).Find(&records).Error; err != nil {
		return nil, err
	}
	areas := make(AccountAreaMap, len(records))
	for _, r := range records {
		areas[r.AccountNumber] = strings.ToLower(strings.TrimSpace(r.Area))
	}
	return areas, nil
}
