package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/shopspring/decimal"
)

// evaluator reports whether a factor triggers and why.
type evaluator func(pc populationContext, t models.Transaction) (bool, string)

func defaultEvaluators() map[string]evaluator {
	return map[string]evaluator{
		rulebook.FactorWeekendPosting:    weekendPosting,
		rulebook.FactorHolidayPosting:    holidayPosting,
		rulebook.FactorRoundAmount:       roundAmount,
		rulebook.FactorLargeAmount:       largeAmount,
		rulebook.FactorNearThreshold:     nearThreshold,
		rulebook.FactorCorrectionKeyword: correctionKeyword,
		rulebook.FactorManualKeyword:     manualKeyword,
		rulebook.FactorRareAccount:       rareAccount,
		rulebook.FactorLateNight:         lateNight,
		rulebook.FactorMonthEnd:          monthEnd,
	}
}

func weekendPosting(pc populationContext, t models.Transaction) (bool, string) {
	wd := t.TransactionDate.In(pc.loc).Weekday()
	if wd != time.Saturday && wd != time.Sunday {
		return false, ""
	}
	return true, "posted on a " + wd.String()
}

func holidayPosting(pc populationContext, t models.Transaction) (bool, string) {
	md := t.TransactionDate.In(pc.loc).Format("01-02")
	if !pc.rb.IsHoliday(md) {
		return false, ""
	}
	return true, "posted on public holiday " + md
}

func roundAmount(pc populationContext, t models.Transaction) (bool, string) {
	amount := t.AbsAmount()
	if !pc.rb.IsRoundAmount(amount) {
		return false, ""
	}
	return true, fmt.Sprintf("round amount %s", amount.StringFixed(2))
}

func largeAmount(pc populationContext, t models.Transaction) (bool, string) {
	amount := t.AbsAmount()
	if !pc.largeThreshold.IsPositive() || !amount.GreaterThan(pc.largeThreshold) {
		return false, ""
	}
	return true, fmt.Sprintf("amount %s exceeds %s times the average of %s",
		amount.StringFixed(2), pc.rb.LargeAmountMultiplier.String(), pc.avgAmount.StringFixed(2))
}

func nearThreshold(pc populationContext, t models.Transaction) (bool, string) {
	amount := t.AbsAmount()
	for _, limit := range pc.rb.AuthorizationThresholds {
		lower := limit.Mul(pc.rb.NearThresholdRatio)
		if amount.GreaterThanOrEqual(lower) && amount.LessThan(limit) {
			return true, fmt.Sprintf("amount %s is just below the %s authorization limit", amount.StringFixed(2), limit.String())
		}
	}
	return false, ""
}

func matchKeyword(description string, keywords []string) string {
	lower := strings.ToLower(description)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return k
		}
	}
	return ""
}

func correctionKeyword(pc populationContext, t models.Transaction) (bool, string) {
	if k := matchKeyword(t.Description, pc.rb.CorrectionKeywords); k != "" {
		return true, fmt.Sprintf("description contains correction keyword %q", k)
	}
	return false, ""
}

func manualKeyword(pc populationContext, t models.Transaction) (bool, string) {
	if k := matchKeyword(t.Description, pc.rb.ManualKeywords); k != "" {
		return true, fmt.Sprintf("description contains manual posting keyword %q", k)
	}
	return false, ""
}

func rareAccount(pc populationContext, t models.Transaction) (bool, string) {
	if pc.usageTotal == 0 {
		return false, ""
	}
	n := pc.usage[t.AccountNumber]
	// n/total < share, compared without division
	limit := pc.rb.RareAccountShare.Mul(decimal.NewFromInt(int64(pc.usageTotal)))
	if !decimal.NewFromInt(int64(n)).LessThan(limit) {
		return false, ""
	}
	return true, fmt.Sprintf("account %s is used by %d of %d transactions", t.AccountNumber, n, pc.usageTotal)
}

func lateNight(pc populationContext, t models.Transaction) (bool, string) {
	if !t.HasTimeOfDay {
		return false, ""
	}
	hour := t.TransactionDate.In(pc.loc).Hour()
	if hour < pc.rb.LateNightFrom && hour > pc.rb.LateNightUntil {
		return false, ""
	}
	return true, fmt.Sprintf("posted at %02d:00", hour)
}

func monthEnd(pc populationContext, t models.Transaction) (bool, string) {
	local := t.TransactionDate.In(pc.loc)
	if local.AddDate(0, 0, 1).Day() != 1 {
		return false, ""
	}
	return true, "posted on the last day of " + local.Month().String()
}
