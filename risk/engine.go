// Package risk scores every transaction of a population against the weighted
// factor catalogue of a rulebook and classifies it into a risk tier.
package risk

import (
	"sort"
	"time"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/shopspring/decimal"
)

const maxTopFactors = 10

type Engine struct {
	rb         *rulebook.Rulebook
	loc        *time.Location
	evaluators map[string]evaluator
}

type Option func(*Engine)

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func NewEngine(rb *rulebook.Rulebook, opts ...Option) *Engine {
	if rb == nil {
		rb = rulebook.Default()
	}
	e := &Engine{rb: rb, loc: time.Local, evaluators: defaultEvaluators()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// populationContext is computed once per scoring run.
type populationContext struct {
	rb             *rulebook.Rulebook
	loc            *time.Location
	avgAmount      decimal.Decimal
	largeThreshold decimal.Decimal
	usage          map[string]int
	usageTotal     int
}

func (e *Engine) prepare(txns []models.Transaction, usage map[string]int) populationContext {
	pc := populationContext{rb: e.rb, loc: e.loc, avgAmount: decimal.Zero, largeThreshold: decimal.Zero}
	if len(txns) > 0 {
		total := decimal.Zero
		for _, t := range txns {
			total = total.Add(t.AbsAmount())
		}
		pc.avgAmount = total.Div(decimal.NewFromInt(int64(len(txns))))
		pc.largeThreshold = pc.avgAmount.Mul(e.rb.LargeAmountMultiplier)
	}

	if usage == nil {
		usage = AccountUsage(txns)
	}
	pc.usage = usage
	for _, n := range usage {
		pc.usageTotal += n
	}
	if pc.usageTotal == 0 {
		pc.usageTotal = len(txns)
	}
	return pc
}

// AccountUsage counts transactions per account number.
func AccountUsage(txns []models.Transaction) map[string]int {
	usage := make(map[string]int)
	for _, t := range txns {
		usage[t.AccountNumber]++
	}
	return usage
}

// score evaluates a single transaction. Factors without an evaluator are skipped.
func (e *Engine) score(pc populationContext, t models.Transaction) models.TransactionRiskScore {
	s := models.TransactionRiskScore{
		TransactionId:   t.ID,
		VoucherNumber:   t.VoucherNumber,
		AccountNumber:   t.AccountNumber,
		Amount:          t.AbsAmount(),
		TransactionDate: t.TransactionDate,
		Description:     t.Description,
		Factors:         []models.TriggeredFactor{},
	}
	for _, f := range e.rb.RiskFactors {
		eval, ok := e.evaluators[f.Name]
		if !ok {
			continue
		}
		triggered, why := eval(pc, t)
		if !triggered {
			continue
		}
		s.TotalScore += f.Weight
		s.Factors = append(s.Factors, models.TriggeredFactor{
			Name:          f.Name,
			Category:      f.Category,
			Points:        f.Weight,
			Justification: why,
		})
	}
	s.RiskLevel = e.rb.Tiers.Level(s.TotalScore)
	return s
}

// ScoreTransaction scores t within the context of population.
func (e *Engine) ScoreTransaction(population []models.Transaction, t models.Transaction) models.TransactionRiskScore {
	return e.score(e.prepare(population, nil), t)
}

// ScorePopulation scores every transaction. usage may be nil, in which case it is
// derived from txns. Transactions that trigger nothing are not reported.
func (e *Engine) ScorePopulation(txns []models.Transaction, usage map[string]int) models.RiskScoringResults {
	pc := e.prepare(txns, usage)

	results := models.RiskScoringResults{
		TotalTransactions:    len(txns),
		ScoredTransactions:   []models.TransactionRiskScore{},
		HighRiskTransactions: []models.TransactionRiskScore{},
		RiskDistribution:     map[models.RiskLevel]int{},
		TopRiskFactors:       []models.RiskFactorFrequency{},
		RulebookVersion:      e.rb.Version,
	}
	for _, level := range models.AllRiskLevels {
		results.RiskDistribution[level] = 0
	}

	frequency := map[string]int{}
	for _, t := range txns {
		s := e.score(pc, t)
		if s.TotalScore == 0 {
			continue
		}
		for _, f := range s.Factors {
			frequency[f.Name]++
		}
		results.ScoredTransactions = append(results.ScoredTransactions, s)
		results.RiskDistribution[s.RiskLevel]++
	}

	sort.SliceStable(results.ScoredTransactions, func(i, j int) bool {
		a, b := results.ScoredTransactions[i], results.ScoredTransactions[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		return a.TransactionId < b.TransactionId
	})
	for _, s := range results.ScoredTransactions {
		if s.RiskLevel.IsHighRisk() {
			results.HighRiskTransactions = append(results.HighRiskTransactions, s)
		}
	}

	results.TopRiskFactors = e.topFactors(frequency)
	return results
}

// topFactors ranks by frequency, ties broken by catalogue order.
func (e *Engine) topFactors(frequency map[string]int) []models.RiskFactorFrequency {
	out := []models.RiskFactorFrequency{}
	for _, f := range e.rb.RiskFactors {
		if n := frequency[f.Name]; n > 0 {
			out = append(out, models.RiskFactorFrequency{Name: f.Name, Category: f.Category, Count: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > maxTopFactors {
		out = out[:maxTopFactors]
	}
	return out
}
