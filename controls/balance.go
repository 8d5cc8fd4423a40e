package controls

import (
	"fmt"

	"github.com/mmdatafocus/audit_backend/models"
)

// VoucherBalance flags every voucher whose debits and credits differ by more than the tolerance.
func (s *Suite) VoucherBalance(txns []models.Transaction) models.ControlTestResult {
	groups := groupByVoucher(txns)
	evidence := []models.ControlEvidence{}
	for _, g := range groups {
		debit, credit := sumAmounts(g.lines)
		diff := debit.Sub(credit)
		if diff.Abs().LessThanOrEqual(s.rb.BalanceTolerance) {
			continue
		}
		evidence = append(evidence, models.ControlEvidence{
			VoucherNumber:    g.number,
			Difference:       decPtr(diff),
			TransactionCount: len(g.lines),
			Accounts:         distinctAccounts(g.lines),
		})
	}

	result := models.ControlTestResult{
		TestName:   models.ControlTestVoucherBalance,
		ErrorCount: len(evidence),
		Evidence:   evidence,
		Passed:     len(evidence) == 0,
		Severity:   models.SeverityInfo,
	}
	if result.Passed {
		result.Description = fmt.Sprintf("All %d vouchers balance", len(groups))
	} else {
		result.Severity = models.SeverityError
		result.Description = fmt.Sprintf("%d of %d vouchers do not balance", len(evidence), len(groups))
	}
	return result
}

// OverallBalance compares total debits with total credits across the population.
func (s *Suite) OverallBalance(txns []models.Transaction) models.ControlTestResult {
	debit, credit := sumAmounts(txns)
	diff := debit.Sub(credit)
	balanced := diff.Abs().LessThanOrEqual(s.rb.BalanceTolerance)

	result := models.ControlTestResult{
		TestName: models.ControlTestOverallBalance,
		Passed:   balanced,
		Evidence: []models.ControlEvidence{{
			TotalDebit:  decPtr(debit),
			TotalCredit: decPtr(credit),
			Difference:  decPtr(diff),
		}},
		Severity: models.SeverityInfo,
	}
	if balanced {
		result.Description = fmt.Sprintf("Total debit %s equals total credit %s", debit.StringFixed(2), credit.StringFixed(2))
	} else {
		result.ErrorCount = 1
		result.Severity = models.SeverityError
		result.Description = fmt.Sprintf("Total debit %s differs from total credit %s by %s", debit.StringFixed(2), credit.StringFixed(2), diff.StringFixed(2))
	}
	return result
}
