// Package rulebook holds the versioned rule tables used by the control suite,
// the risk engine and the sampler. Tables are plain data so a firm can swap them
// without touching engine code.
package rulebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

const DefaultVersion = "2024.1"

// Risk factor names of the built-in catalogue.
const (
	FactorWeekendPosting    = "weekend_posting"
	FactorHolidayPosting    = "holiday_posting"
	FactorRoundAmount       = "round_amount"
	FactorLargeAmount       = "large_amount"
	FactorNearThreshold     = "near_authorization_threshold"
	FactorCorrectionKeyword = "correction_keyword"
	FactorManualKeyword     = "manual_posting_keyword"
	FactorRareAccount       = "rare_account"
	FactorLateNight         = "late_night_posting"
	FactorMonthEnd          = "month_end_posting"
)

type AmountBand struct {
	Name string          `json:"name"`
	Min  decimal.Decimal `json:"min"`
	// Max is exclusive; nil means unbounded.
	Max    *decimal.Decimal `json:"max,omitempty"`
	Weight decimal.Decimal  `json:"weight"`
}

// Contains reports whether amount falls in [Min, Max).
func (b AmountBand) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || amount.LessThan(*b.Max)
}

// RoundAmountRule applies to amounts >= Min; rules are checked from the highest Min down.
type RoundAmountRule struct {
	Min      decimal.Decimal   `json:"min"`
	Divisors []decimal.Decimal `json:"divisors"`
}

type TierThresholds struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
}

// Level classifies a total score.
func (t TierThresholds) Level(score int) models.RiskLevel {
	switch {
	case score >= t.Critical:
		return models.RiskLevelCritical
	case score >= t.High:
		return models.RiskLevelHigh
	case score >= t.Medium:
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}

type Rulebook struct {
	Version string `json:"version"`

	// Holidays are MM-DD strings.
	Holidays                []string            `json:"holidays"`
	AuthorizationThresholds []decimal.Decimal   `json:"authorization_thresholds"`
	CorrectionKeywords      []string            `json:"correction_keywords"`
	ManualKeywords          []string            `json:"manual_keywords"`
	RiskFactors             []models.RiskFactor `json:"risk_factors"`
	Tiers                   TierThresholds      `json:"tiers"`
	RoundAmountRules        []RoundAmountRule   `json:"round_amount_rules"`
	// NearThresholdRatio is the lower bound of the "just below a limit" window.
	NearThresholdRatio    decimal.Decimal `json:"near_threshold_ratio"`
	LargeAmountMultiplier decimal.Decimal `json:"large_amount_multiplier"`
	// RareAccountShare is a fraction of total transaction count.
	RareAccountShare decimal.Decimal `json:"rare_account_share"`
	LateNightFrom    int             `json:"late_night_from"`
	LateNightUntil   int             `json:"late_night_until"`

	AmountBands  []AmountBand        `json:"amount_bands"`
	CounterAreas map[string][]string `json:"counter_areas"`

	AccountFlowErrorLimit int `json:"account_flow_error_limit"`
	DuplicateErrorLimit   int `json:"duplicate_error_limit"`
	OldDateYears          int `json:"old_date_years"`
	// BalanceTolerance is the rounding slack allowed on debit/credit comparisons.
	BalanceTolerance decimal.Decimal `json:"balance_tolerance"`
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

// Default returns the built-in tables. Every call returns a fresh copy.
func Default() *Rulebook {
	return &Rulebook{
		Version:  DefaultVersion,
		Holidays: []string{"01-01", "05-01", "05-17", "12-25", "12-26"},
		AuthorizationThresholds: []decimal.Decimal{
			dec("5000"), dec("10000"), dec("25000"), dec("50000"), dec("100000"), dec("500000"),
		},
		CorrectionKeywords: []string{"korreksjon", "korrigering", "rettelse", "tilbakeføring", "reversering", "correction", "reversal", "adjustment", "justering"},
		ManualKeywords:     []string{"manuell", "manual", "diverse", "div.", "misc", "annet"},
		RiskFactors: []models.RiskFactor{
			{Name: FactorWeekendPosting, Description: "Posted on a Saturday or Sunday", Weight: 2, Category: models.RiskCategoryTiming},
			{Name: FactorHolidayPosting, Description: "Posted on a public holiday", Weight: 3, Category: models.RiskCategoryTiming},
			{Name: FactorRoundAmount, Description: "Suspiciously round amount", Weight: 1, Category: models.RiskCategoryAmount},
			{Name: FactorLargeAmount, Description: "Amount far above the population average", Weight: 2, Category: models.RiskCategoryAmount},
			{Name: FactorNearThreshold, Description: "Amount just below a common authorization limit", Weight: 3, Category: models.RiskCategoryAmount},
			{Name: FactorCorrectionKeyword, Description: "Description mentions a correction", Weight: 2, Category: models.RiskCategoryDescription},
			{Name: FactorManualKeyword, Description: "Description indicates a manual posting", Weight: 1, Category: models.RiskCategoryDescription},
			{Name: FactorRareAccount, Description: "Account is rarely used", Weight: 1, Category: models.RiskCategoryFrequency},
			{Name: FactorLateNight, Description: "Posted late at night", Weight: 1, Category: models.RiskCategoryUser},
			{Name: FactorMonthEnd, Description: "Posted on the last day of the month", Weight: 2, Category: models.RiskCategoryTiming},
		},
		Tiers:                 TierThresholds{Critical: 8, High: 5, Medium: 3},
		RoundAmountRules: []RoundAmountRule{
			{Min: dec("1000"), Divisors: []decimal.Decimal{dec("1000"), dec("5000"), dec("10000")}},
			{Min: dec("100"), Divisors: []decimal.Decimal{dec("100"), dec("500")}},
			{Min: dec("0"), Divisors: []decimal.Decimal{dec("10"), dec("50")}},
		},
		NearThresholdRatio:    dec("0.95"),
		LargeAmountMultiplier: dec("3"),
		RareAccountShare:      dec("0.01"),
		LateNightFrom:         22,
		LateNightUntil:        5,
		AmountBands: []AmountBand{
			{Name: "0-1000", Min: dec("0"), Max: decPtr("1000"), Weight: dec("0.2")},
			{Name: "1000-10000", Min: dec("1000"), Max: decPtr("10000"), Weight: dec("0.3")},
			{Name: "10000-50000", Min: dec("10000"), Max: decPtr("50000"), Weight: dec("0.3")},
			{Name: "50000+", Min: dec("50000"), Weight: dec("0.2")},
		},
		CounterAreas: map[string][]string{
			"sales":     {"receivables", "cash", "bank"},
			"purchases": {"payables", "cash", "bank"},
			"payroll":   {"cash", "bank", "payables"},
			"finance":   {"cash", "bank"},
			"inventory": {"purchases", "payables"},
		},
		AccountFlowErrorLimit: 5,
		DuplicateErrorLimit:   10,
		OldDateYears:          5,
		BalanceTolerance:      dec("0.01"),
	}
}

// IsHoliday matches MM-DD against the holiday list.
func (rb *Rulebook) IsHoliday(monthDay string) bool {
	for _, h := range rb.Holidays {
		if h == monthDay {
			return true
		}
	}
	return false
}

// IsRoundAmount applies the first rule whose Min the amount reaches.
// Zero is never considered round.
func (rb *Rulebook) IsRoundAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	for _, r := range rb.RoundAmountRules {
		if amount.LessThan(r.Min) {
			continue
		}
		for _, d := range r.Divisors {
			if amount.Mod(d).IsZero() {
				return true
			}
		}
		return false
	}
	return false
}

// ExpectedCounterAreas returns nil when the area has no flow expectation.
func (rb *Rulebook) ExpectedCounterAreas(area string) []string {
	return rb.CounterAreas[strings.ToLower(strings.TrimSpace(area))]
}

var monthDayPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)

// Validate checks structural sanity of a loaded rulebook.
func (rb *Rulebook) Validate() error {
	if strings.TrimSpace(rb.Version) == "" {
		return errors.New("rulebook version is required")
	}
	for _, h := range rb.Holidays {
		if !monthDayPattern.MatchString(h) {
			return fmt.Errorf("invalid holiday %q, expected MM-DD", h)
		}
	}
	seen := map[string]bool{}
	for _, f := range rb.RiskFactors {
		if f.Weight < 1 || f.Weight > 5 {
			return fmt.Errorf("risk factor %s: weight %d outside 1..5", f.Name, f.Weight)
		}
		if !f.Category.IsValid() {
			return fmt.Errorf("risk factor %s: unknown category %q", f.Name, f.Category)
		}
		if seen[f.Name] {
			return fmt.Errorf("risk factor %s defined twice", f.Name)
		}
		seen[f.Name] = true
	}
	if !(rb.Tiers.Critical > rb.Tiers.High && rb.Tiers.High > rb.Tiers.Medium && rb.Tiers.Medium > 0) {
		return errors.New("tier thresholds must be strictly descending and positive")
	}
	for i, r := range rb.RoundAmountRules {
		if i > 0 && !r.Min.LessThan(rb.RoundAmountRules[i-1].Min) {
			return errors.New("round amount rules must be ordered by descending min")
		}
		for _, d := range r.Divisors {
			if !d.IsPositive() {
				return errors.New("round amount divisors must be positive")
			}
		}
	}
	if len(rb.AmountBands) == 0 {
		return errors.New("at least one amount band is required")
	}
	for i, b := range rb.AmountBands {
		if b.Weight.IsNegative() {
			return fmt.Errorf("amount band %s: negative weight", b.Name)
		}
		if b.Max != nil && !b.Max.GreaterThan(b.Min) {
			return fmt.Errorf("amount band %s: max must exceed min", b.Name)
		}
		if i > 0 {
			prev := rb.AmountBands[i-1]
			if prev.Max == nil || !prev.Max.Equal(b.Min) {
				return fmt.Errorf("amount band %s does not start where %s ends", b.Name, prev.Name)
			}
		}
	}
	if rb.BalanceTolerance.IsNegative() {
		return errors.New("balance tolerance must be non-negative")
	}
	return nil
}

// Load reads a JSON rulebook and validates it.
func Load(r io.Reader) (*Rulebook, error) {
	var rb Rulebook
	if err := json.NewDecoder(r).Decode(&rb); err != nil {
		return nil, fmt.Errorf("decode rulebook: %w", err)
	}
	if err := rb.Validate(); err != nil {
		return nil, err
	}
	return &rb, nil
}

// LoadFile loads path, or returns Default when path is empty.
func LoadFile(path string) (*Rulebook, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
