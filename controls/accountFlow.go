package controls

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/audit_backend/models"
)

// AccountFlow checks that lines in an area with flow expectations have a counter-posting
// in one of the expected areas within the same voucher.
func (s *Suite) AccountFlow(txns []models.Transaction, areas models.AccountAreaMap) models.ControlTestResult {
	evidence := []models.ControlEvidence{}
	checked := 0

	areaOf := func(account string) string {
		return strings.ToLower(strings.TrimSpace(areas[account]))
	}

	for _, g := range groupByVoucher(txns) {
		if len(g.lines) < 2 {
			continue
		}
		for i, line := range g.lines {
			area := areaOf(line.AccountNumber)
			expected := s.rb.ExpectedCounterAreas(area)
			if len(expected) == 0 {
				continue
			}
			checked++

			found := false
			for j, other := range g.lines {
				if i == j {
					continue
				}
				if containsArea(expected, areaOf(other.AccountNumber)) {
					found = true
					break
				}
			}
			if found {
				continue
			}
			evidence = append(evidence, models.ControlEvidence{
				TransactionId: line.ID,
				VoucherNumber: g.number,
				AccountNumber: line.AccountNumber,
				Area:          area,
				ExpectedAreas: append([]string(nil), expected...),
				Reason:        "no counter-posting in " + strings.Join(expected, ", "),
			})
		}
	}

	result := models.ControlTestResult{
		TestName:   models.ControlTestAccountFlow,
		ErrorCount: len(evidence),
		Evidence:   evidence,
		Passed:     len(evidence) == 0,
		Severity:   models.SeverityWarning,
	}
	if len(evidence) > s.rb.AccountFlowErrorLimit {
		result.Severity = models.SeverityError
	}
	if result.Passed {
		result.Description = fmt.Sprintf("All %d checked lines have an expected counter-posting", checked)
	} else {
		result.Description = fmt.Sprintf("%d of %d checked lines lack an expected counter-posting", len(evidence), checked)
	}
	return result
}

func containsArea(areas []string, area string) bool {
	if area == "" {
		return false
	}
	for _, a := range areas {
		if a == area {
			return true
		}
	}
	return false
}
