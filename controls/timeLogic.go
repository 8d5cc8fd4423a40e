package controls

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
)

// TimeLogic flags future, very old, weekend and holiday dates.
// One transaction may produce several evidence entries.
func (s *Suite) TimeLogic(txns []models.Transaction) models.ControlTestResult {
	now := s.now().In(s.loc)
	oldestYear := now.Year() - s.rb.OldDateYears

	evidence := []models.ControlEvidence{}
	future := 0
	add := func(t models.Transaction, issue models.TimeIssueType, reason string) {
		date := t.TransactionDate
		evidence = append(evidence, models.ControlEvidence{
			TransactionId: t.ID,
			VoucherNumber: t.VoucherNumber,
			AccountNumber: t.AccountNumber,
			Date:          &date,
			IssueType:     issue,
			Reason:        reason,
		})
	}

	for _, t := range txns {
		local := t.TransactionDate.In(s.loc)
		if t.TransactionDate.After(now) {
			future++
			add(t, models.TimeIssueFuture, "dated in the future")
		}
		if local.Year() < oldestYear {
			add(t, models.TimeIssueOld, fmt.Sprintf("dated more than %d years back", s.rb.OldDateYears))
		}
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			add(t, models.TimeIssueWeekend, "posted on "+wd.String())
		}
		if md := local.Format("01-02"); s.rb.IsHoliday(md) {
			add(t, models.TimeIssueHoliday, "posted on public holiday "+md)
		}
	}

	result := models.ControlTestResult{
		TestName:   models.ControlTestTimeLogic,
		ErrorCount: len(evidence),
		Evidence:   evidence,
		Passed:     len(evidence) == 0,
		Severity:   models.SeverityWarning,
	}
	if future > 0 {
		result.Severity = models.SeverityError
	}
	if result.Passed {
		result.Description = "All transaction dates are plausible"
	} else {
		result.Description = fmt.Sprintf("%d date issues found, %d in the future", len(evidence), future)
	}
	return result
}
