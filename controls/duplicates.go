package controls

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
)

// duplicateKey is compared field by field; decimals use their canonical string.
type duplicateKey struct {
	date        string
	debit       string
	credit      string
	description string
	account     string
}

func keyOf(t models.Transaction) duplicateKey {
	return duplicateKey{
		date:        t.TransactionDate.UTC().Format(time.RFC3339Nano),
		debit:       t.Debit.String(),
		credit:      t.Credit.String(),
		description: t.Description,
		account:     t.AccountNumber,
	}
}

// Duplicates groups transactions sharing date, amounts, description and account.
// Groups are reported in order of their first member.
func (s *Suite) Duplicates(txns []models.Transaction) models.ControlTestResult {
	idx := map[duplicateKey]int{}
	var groups [][]models.Transaction
	for _, t := range txns {
		k := keyOf(t)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}

	evidence := []models.ControlEvidence{}
	duplicated := 0
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		first := g[0]
		members := make([]models.DuplicateMember, 0, len(g))
		for _, t := range g {
			members = append(members, models.DuplicateMember{TransactionId: t.ID, VoucherNumber: t.VoucherNumber})
		}
		date := first.TransactionDate
		evidence = append(evidence, models.ControlEvidence{
			Date:             &date,
			Debit:            decPtr(first.Debit),
			Credit:           decPtr(first.Credit),
			Description:      first.Description,
			AccountNumber:    first.AccountNumber,
			TransactionCount: len(g),
			Members:          members,
		})
		duplicated += len(g)
	}

	result := models.ControlTestResult{
		TestName:   models.ControlTestDuplicates,
		ErrorCount: len(evidence),
		Evidence:   evidence,
		Passed:     len(evidence) == 0,
		Severity:   models.SeverityWarning,
	}
	if len(evidence) > s.rb.DuplicateErrorLimit {
		result.Severity = models.SeverityError
	}
	if result.Passed {
		result.Description = "No duplicate postings found"
	} else {
		result.Description = fmt.Sprintf("%d duplicate groups covering %d transactions", len(evidence), duplicated)
	}
	return result
}
