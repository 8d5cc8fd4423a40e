package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SectionDescriptor struct {
	Type           SectionType `json:"type"`
	IncludeCharts  bool        `json:"include_charts"`
	IncludeDetails bool        `json:"include_details"`
}

type ReportTemplate struct {
	Id       TemplateId          `json:"id"`
	Name     string              `json:"name"`
	Sections []SectionDescriptor `json:"sections"`
}

type ChartPayload struct {
	Kind   string            `json:"kind"`
	Labels []string          `json:"labels"`
	Values []decimal.Decimal `json:"values"`
}

type TablePayload struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type ReportSection struct {
	Type    SectionType   `json:"type"`
	Title   string        `json:"title"`
	Content []string      `json:"content"`
	Chart   *ChartPayload `json:"chart,omitempty"`
	Table   *TablePayload `json:"table,omitempty"`
}

type ReportSummary struct {
	OverallRisk    RiskLevel       `json:"overall_risk"`
	CriticalIssues int             `json:"critical_issues"`
	PassRate       decimal.Decimal `json:"pass_rate"`
	KeyFindings    []string        `json:"key_findings"`
	ActionRequired bool            `json:"action_required"`
}

type Recommendation struct {
	Priority    RecommendationPriority `json:"priority"`
	Category    string                 `json:"category"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
}

// GeneratedReport is an immutable value produced from one template and one analysis.
type GeneratedReport struct {
	Id              string           `json:"id"`
	TemplateId      TemplateId       `json:"template_id"`
	Title           string           `json:"title"`
	Population      PopulationRef    `json:"population"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Sections        []ReportSection  `json:"sections"`
	Summary         ReportSummary    `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
}
