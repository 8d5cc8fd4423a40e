package reports

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

const (
	maxEvidenceLines = 20
	maxDetailRows    = 50
)

type sectionRenderer func(data *models.AggregatedAnalysis, summary models.ReportSummary, recs []models.Recommendation, d models.SectionDescriptor) models.ReportSection

var renderers = map[models.SectionType]sectionRenderer{
	models.SectionSummary:         renderSummary,
	models.SectionControls:        renderControls,
	models.SectionRisk:            renderRisk,
	models.SectionFlow:            renderFlow,
	models.SectionAI:              renderAI,
	models.SectionRecommendations: renderRecommendations,
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func riskDistributionChart(rs models.RiskScoringResults) *models.ChartPayload {
	chart := &models.ChartPayload{Kind: "bar"}
	for _, level := range models.AllRiskLevels {
		chart.Labels = append(chart.Labels, string(level))
		chart.Values = append(chart.Values, decimal.NewFromInt(int64(rs.CountAt(level))))
	}
	return chart
}

func renderSummary(data *models.AggregatedAnalysis, summary models.ReportSummary, _ []models.Recommendation, d models.SectionDescriptor) models.ReportSection {
	s := models.ReportSection{Type: models.SectionSummary, Title: "Summary"}
	s.Content = append(s.Content,
		"Overall risk: "+string(summary.OverallRisk),
		"Control pass rate: "+summary.PassRate.StringFixed(2)+"%",
		"Critical issues: "+strconv.Itoa(summary.CriticalIssues),
		fmt.Sprintf("Transactions analysed: %d in %d vouchers", data.Statistics.TransactionCount, data.Statistics.VoucherCount),
	)
	if summary.ActionRequired {
		s.Content = append(s.Content, "Action required: yes")
	} else {
		s.Content = append(s.Content, "Action required: no")
	}
	for _, f := range summary.KeyFindings {
		s.Content = append(s.Content, "- "+f)
	}
	if d.IncludeCharts {
		s.Chart = riskDistributionChart(data.RiskScoring)
	}
	return s
}

func evidenceLine(e models.ControlEvidence) string {
	var parts []string
	if e.VoucherNumber != "" {
		parts = append(parts, "voucher "+e.VoucherNumber)
	}
	if e.TransactionId != "" {
		parts = append(parts, "transaction "+e.TransactionId)
	}
	if e.AccountNumber != "" {
		parts = append(parts, "account "+e.AccountNumber)
	}
	if e.IssueType != "" {
		parts = append(parts, string(e.IssueType))
	}
	if e.Date != nil {
		parts = append(parts, e.Date.Format("2006-01-02"))
	}
	if len(e.Members) > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicates", len(e.Members)))
	}
	if e.TotalDebit != nil && e.TotalCredit != nil {
		parts = append(parts, "debit "+money(*e.TotalDebit)+" credit "+money(*e.TotalCredit))
	}
	if e.Difference != nil {
		parts = append(parts, "difference "+money(*e.Difference))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return strings.Join(parts, ", ")
}

func renderControls(data *models.AggregatedAnalysis, _ models.ReportSummary, _ []models.Recommendation, d models.SectionDescriptor) models.ReportSection {
	s := models.ReportSection{Type: models.SectionControls, Title: "Control tests"}
	passed := 0
	for _, r := range data.ControlTests {
		status := "FAILED"
		if r.Passed {
			status = "PASSED"
			passed++
		}
		s.Content = append(s.Content, fmt.Sprintf("%s: %s (%d issue(s), %s)", r.TestName.DisplayName(), status, r.ErrorCount, r.Severity))
		if !d.IncludeDetails || r.Passed {
			continue
		}
		for i, e := range r.Evidence {
			if i == maxEvidenceLines {
				s.Content = append(s.Content, fmt.Sprintf("  ... %d more", len(r.Evidence)-maxEvidenceLines))
				break
			}
			s.Content = append(s.Content, "  "+evidenceLine(e))
		}
	}
	if d.IncludeDetails {
		table := &models.TablePayload{Headers: []string{"Test", "Passed", "Errors", "Severity"}}
		for _, r := range data.ControlTests {
			table.Rows = append(table.Rows, []string{r.TestName.DisplayName(), strconv.FormatBool(r.Passed), strconv.Itoa(r.ErrorCount), string(r.Severity)})
		}
		s.Table = table
	}
	if d.IncludeCharts {
		s.Chart = &models.ChartPayload{
			Kind:   "pie",
			Labels: []string{"passed", "failed"},
			Values: []decimal.Decimal{decimal.NewFromInt(int64(passed)), decimal.NewFromInt(int64(len(data.ControlTests) - passed))},
		}
	}
	return s
}

func renderRisk(data *models.AggregatedAnalysis, _ models.ReportSummary, _ []models.Recommendation, d models.SectionDescriptor) models.ReportSection {
	rs := data.RiskScoring
	s := models.ReportSection{Type: models.SectionRisk, Title: "Risk scoring"}
	s.Content = append(s.Content,
		fmt.Sprintf("Transactions scored: %d of %d", len(rs.ScoredTransactions), rs.TotalTransactions),
		fmt.Sprintf("High-risk transactions: %d (%s%%)", len(rs.HighRiskTransactions), rs.HighRiskRatio().Mul(decimal.NewFromInt(100)).StringFixed(2)),
	)
	for _, level := range models.AllRiskLevels {
		s.Content = append(s.Content, fmt.Sprintf("  %s: %d", level, rs.CountAt(level)))
	}
	for _, f := range rs.TopRiskFactors {
		s.Content = append(s.Content, fmt.Sprintf("Factor %s (%s): %d", f.Name, f.Category, f.Count))
	}
	if d.IncludeCharts {
		s.Chart = riskDistributionChart(rs)
	}
	if d.IncludeDetails {
		table := &models.TablePayload{Headers: []string{"Transaction", "Voucher", "Account", "Date", "Amount", "Score", "Level", "Factors"}}
		for i, t := range rs.HighRiskTransactions {
			if i == maxDetailRows {
				break
			}
			names := make([]string, 0, len(t.Factors))
			for _, f := range t.Factors {
				names = append(names, f.Name)
			}
			table.Rows = append(table.Rows, []string{
				t.TransactionId, t.VoucherNumber, t.AccountNumber, t.TransactionDate.Format("2006-01-02"),
				money(t.Amount), strconv.Itoa(t.TotalScore), string(t.RiskLevel), strings.Join(names, ", "),
			})
		}
		s.Table = table
	}
	return s
}

func renderFlow(data *models.AggregatedAnalysis, _ models.ReportSummary, _ []models.Recommendation, d models.SectionDescriptor) models.ReportSection {
	st := data.Statistics
	s := models.ReportSection{Type: models.SectionFlow, Title: "Transaction flow"}
	s.Content = append(s.Content,
		fmt.Sprintf("Total debit %s, total credit %s", money(st.TotalDebit), money(st.TotalCredit)),
		fmt.Sprintf("Accounts used: %d", st.AccountCount),
	)
	if st.DateRange != nil {
		s.Content = append(s.Content, "Period: "+st.DateRange.From.Format("2006-01-02")+" to "+st.DateRange.To.Format("2006-01-02"))
	}
	for _, r := range data.ControlTests {
		if r.TestName == models.ControlTestAccountFlow {
			s.Content = append(s.Content, fmt.Sprintf("Lines without expected counter-posting: %d", r.ErrorCount))
		}
	}
	for _, m := range st.MonthlyTotals {
		s.Content = append(s.Content, fmt.Sprintf("  %s: %d line(s), net %s", m.Month, m.TransactionCount, money(m.NetAmount)))
	}
	if d.IncludeCharts {
		chart := &models.ChartPayload{Kind: "line"}
		for _, m := range st.MonthlyTotals {
			chart.Labels = append(chart.Labels, m.Month)
			chart.Values = append(chart.Values, m.NetAmount)
		}
		s.Chart = chart
	}
	if d.IncludeDetails {
		table := &models.TablePayload{Headers: []string{"Account", "Name", "Lines", "Debit", "Credit"}}
		for i, a := range st.AccountDistribution {
			if i == maxDetailRows {
				break
			}
			table.Rows = append(table.Rows, []string{a.AccountNumber, a.AccountName, strconv.Itoa(a.TransactionCount), money(a.TotalDebit), money(a.TotalCredit)})
		}
		s.Table = table
	}
	return s
}

func renderAI(data *models.AggregatedAnalysis, _ models.ReportSummary, _ []models.Recommendation, d models.SectionDescriptor) models.ReportSection {
	s := models.ReportSection{Type: models.SectionAI, Title: "AI analysis"}
	f := data.AIFindings
	if f == nil {
		s.Content = []string{"AI analysis was not available for this run."}
		return s
	}
	if f.ConfidenceScore != nil {
		s.Content = append(s.Content, "Confidence: "+strconv.FormatFloat(*f.ConfidenceScore, 'f', 2, 64))
	}
	for _, k := range f.KeyFindings {
		s.Content = append(s.Content, "- "+k)
	}
	for _, p := range f.Patterns {
		s.Content = append(s.Content, "Pattern: "+p)
	}
	if d.IncludeDetails && len(f.Anomalies) > 0 {
		table := &models.TablePayload{Headers: []string{"Transaction", "Severity", "Description"}}
		for _, a := range f.Anomalies {
			table.Rows = append(table.Rows, []string{a.TransactionId, a.Severity, a.Description})
		}
		s.Table = table
	}
	return s
}

func renderRecommendations(_ *models.AggregatedAnalysis, _ models.ReportSummary, recs []models.Recommendation, _ models.SectionDescriptor) models.ReportSection {
	s := models.ReportSection{Type: models.SectionRecommendations, Title: "Recommendations"}
	for _, r := range recs {
		s.Content = append(s.Content, fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(r.Priority)), r.Title, r.Description))
	}
	return s
}
