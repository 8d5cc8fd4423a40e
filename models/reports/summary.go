package reports

import (
	"fmt"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

const maxFindingsPerSource = 3

var (
	highRiskRatioLimit   = decimal.RequireFromString("0.10")
	mediumRiskRatioLimit = decimal.RequireFromString("0.05")
)

// OverallRisk is high on any critical control failure or when more than 10% of the
// population is high risk, medium above 5%, otherwise low.
func OverallRisk(data *models.AggregatedAnalysis) models.RiskLevel {
	for _, r := range data.ControlTests {
		if r.IsCriticalFailure() {
			return models.RiskLevelHigh
		}
	}
	ratio := data.RiskScoring.HighRiskRatio()
	switch {
	case ratio.GreaterThan(highRiskRatioLimit):
		return models.RiskLevelHigh
	case ratio.GreaterThan(mediumRiskRatioLimit):
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}

func criticalControlFailures(data *models.AggregatedAnalysis) []models.ControlTestResult {
	var out []models.ControlTestResult
	for _, r := range data.ControlTests {
		if r.IsCriticalFailure() {
			out = append(out, r)
		}
	}
	return out
}

// BuildSummary derives the report headline. Critical issues are control failures at
// error severity plus transactions in the critical tier.
func BuildSummary(data *models.AggregatedAnalysis) models.ReportSummary {
	overall := OverallRisk(data)
	critical := len(criticalControlFailures(data)) + data.RiskScoring.CountAt(models.RiskLevelCritical)
	return models.ReportSummary{
		OverallRisk:    overall,
		CriticalIssues: critical,
		PassRate:       models.PassRate(data.ControlTests),
		KeyFindings:    keyFindings(data),
		ActionRequired: overall != models.RiskLevelLow || critical > 0,
	}
}

func capped(items []string) []string {
	if len(items) > maxFindingsPerSource {
		return items[:maxFindingsPerSource]
	}
	return items
}

func keyFindings(data *models.AggregatedAnalysis) []string {
	out := []string{}

	var controls []string
	for _, r := range data.ControlTests {
		if !r.Passed {
			controls = append(controls, fmt.Sprintf("%s: %d issue(s) at %s severity", r.TestName.DisplayName(), r.ErrorCount, r.Severity))
		}
	}
	out = append(out, capped(controls)...)

	var risk []string
	rs := data.RiskScoring
	if n := len(rs.HighRiskTransactions); n > 0 {
		risk = append(risk, fmt.Sprintf("%d of %d transactions classified high or critical risk", n, rs.TotalTransactions))
	}
	for _, f := range rs.TopRiskFactors {
		risk = append(risk, fmt.Sprintf("Risk factor %s triggered %d time(s)", f.Name, f.Count))
	}
	out = append(out, capped(risk)...)

	if data.AIFindings != nil {
		out = append(out, capped(data.AIFindings.KeyFindings)...)
	}
	return out
}
