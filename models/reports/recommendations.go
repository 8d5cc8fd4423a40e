package reports

import (
	"fmt"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

var lowPassRate = decimal.NewFromInt(80)

var noIssueRecommendations = []models.Recommendation{
	{
		Priority:    models.RecommendationPriorityLow,
		Category:    "controls",
		Title:       "Maintain current control environment",
		Description: "No control failures were found. Keep the existing posting and approval routines.",
	},
	{
		Priority:    models.RecommendationPriorityLow,
		Category:    "monitoring",
		Title:       "Continue periodic monitoring",
		Description: "Re-run the analysis when new ledger data is delivered.",
	},
	{
		Priority:    models.RecommendationPriorityLow,
		Category:    "sampling",
		Title:       "Perform routine sample testing",
		Description: "Draw a standard sample for substantive testing as planned.",
	},
}

// BuildRecommendations walks the fixed ladder: critical control failures, high-risk
// review, overall risk escalation, AI suggestions, low pass rate.
func BuildRecommendations(data *models.AggregatedAnalysis, summary models.ReportSummary) []models.Recommendation {
	out := []models.Recommendation{}

	for _, r := range criticalControlFailures(data) {
		out = append(out, models.Recommendation{
			Priority:    models.RecommendationPriorityHigh,
			Category:    "controls",
			Title:       "Resolve " + r.TestName.DisplayName() + " failures",
			Description: fmt.Sprintf("%d issue(s) found. %s", r.ErrorCount, r.Description),
		})
	}

	if n := len(data.RiskScoring.HighRiskTransactions); n > 0 {
		out = append(out, models.Recommendation{
			Priority:    models.RecommendationPriorityHigh,
			Category:    "risk",
			Title:       "Review high-risk transactions",
			Description: fmt.Sprintf("Test the %d transaction(s) classified high or critical risk.", n),
		})
	}

	switch summary.OverallRisk {
	case models.RiskLevelHigh:
		out = append(out, models.Recommendation{
			Priority:    models.RecommendationPriorityHigh,
			Category:    "risk",
			Title:       "Escalate overall risk assessment",
			Description: "Overall risk is high. Extend substantive testing and inform the engagement lead.",
		})
	case models.RiskLevelMedium:
		out = append(out, models.Recommendation{
			Priority:    models.RecommendationPriorityMedium,
			Category:    "risk",
			Title:       "Increase substantive testing",
			Description: "Overall risk is medium. Raise sample sizes for the affected areas.",
		})
	}

	if data.AIFindings != nil {
		for _, rec := range data.AIFindings.Recommendations {
			out = append(out, models.Recommendation{
				Priority:    models.RecommendationPriorityMedium,
				Category:    "ai",
				Title:       "AI analysis suggestion",
				Description: rec,
			})
		}
	}

	if summary.PassRate.LessThan(lowPassRate) {
		out = append(out, models.Recommendation{
			Priority:    models.RecommendationPriorityMedium,
			Category:    "controls",
			Title:       "Improve control pass rate",
			Description: fmt.Sprintf("Only %s%% of control tests passed. Remediate failing controls before sign-off.", summary.PassRate.StringFixed(2)),
		})
	}

	if len(out) == 0 {
		return append(out, noIssueRecommendations...)
	}
	return out
}
