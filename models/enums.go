package models

type ControlTestName string

const (
	ControlTestVoucherBalance ControlTestName = "voucher_balance"
	ControlTestAccountFlow    ControlTestName = "account_flow"
	ControlTestDuplicates     ControlTestName = "duplicates"
	ControlTestTimeLogic      ControlTestName = "time_logic"
	ControlTestOverallBalance ControlTestName = "overall_balance"
)

// AllControlTests is the fixed execution order of the control suite.
var AllControlTests = []ControlTestName{
	ControlTestVoucherBalance,
	ControlTestAccountFlow,
	ControlTestDuplicates,
	ControlTestTimeLogic,
	ControlTestOverallBalance,
}

func (n ControlTestName) DisplayName() string {
	switch n {
	case ControlTestVoucherBalance:
		return "Voucher balance"
	case ControlTestAccountFlow:
		return "Account flow"
	case ControlTestDuplicates:
		return "Duplicate postings"
	case ControlTestTimeLogic:
		return "Time logic"
	case ControlTestOverallBalance:
		return "Overall balance"
	}
	return string(n)
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// AllRiskLevels is ordered low to critical.
var AllRiskLevels = []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical}

// Rank returns the ordinal position of the level, low = 0.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelMedium:
		return 1
	case RiskLevelHigh:
		return 2
	case RiskLevelCritical:
		return 3
	}
	return 0
}

// IsHighRisk reports whether the level is high or critical.
func (l RiskLevel) IsHighRisk() bool {
	return l.Rank() >= RiskLevelHigh.Rank()
}

type RiskCategory string

const (
	RiskCategoryTiming      RiskCategory = "timing"
	RiskCategoryAmount      RiskCategory = "amount"
	RiskCategoryDescription RiskCategory = "description"
	RiskCategoryFrequency   RiskCategory = "frequency"
	RiskCategoryUser        RiskCategory = "user"
)

func (c RiskCategory) IsValid() bool {
	switch c {
	case RiskCategoryTiming, RiskCategoryAmount, RiskCategoryDescription, RiskCategoryFrequency, RiskCategoryUser:
		return true
	}
	return false
}

type SamplingMethod string

const (
	SamplingMethodSRS        SamplingMethod = "srs"
	SamplingMethodSystematic SamplingMethod = "systematic"
	SamplingMethodMUS        SamplingMethod = "mus"
	SamplingMethodStratified SamplingMethod = "stratified"
	SamplingMethodThreshold  SamplingMethod = "threshold"
)

var AllSamplingMethods = []SamplingMethod{
	SamplingMethodSRS,
	SamplingMethodSystematic,
	SamplingMethodMUS,
	SamplingMethodStratified,
	SamplingMethodThreshold,
}

func (m SamplingMethod) IsValid() bool {
	for _, v := range AllSamplingMethods {
		if m == v {
			return true
		}
	}
	return false
}

type TemplateId string

const (
	TemplateComprehensive TemplateId = "comprehensive"
	TemplateExecutive     TemplateId = "executive"
	TemplateTechnical     TemplateId = "technical"
)

type SectionType string

const (
	SectionSummary         SectionType = "summary"
	SectionControls        SectionType = "controls"
	SectionRisk            SectionType = "risk"
	SectionFlow            SectionType = "flow"
	SectionAI              SectionType = "ai"
	SectionRecommendations SectionType = "recommendations"
)

type RecommendationPriority string

const (
	RecommendationPriorityHigh   RecommendationPriority = "high"
	RecommendationPriorityMedium RecommendationPriority = "medium"
	RecommendationPriorityLow    RecommendationPriority = "low"
)

// TimeIssueType names the reason a transaction failed the time-logic test.
type TimeIssueType string

const (
	TimeIssueFuture  TimeIssueType = "future_date"
	TimeIssueOld     TimeIssueType = "old_date"
	TimeIssueWeekend TimeIssueType = "weekend"
	TimeIssueHoliday TimeIssueType = "holiday"
)
