// Package workflow orchestrates analysis runs over a client population.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/controls"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/risk"
	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("audit_backend/workflow")

type Analyzer struct {
	suite        *controls.Suite
	engine       *risk.Engine
	ai           AnomalyAnalyzer
	analysisType string
	logger       *logrus.Logger
	now          func() time.Time
	newRunId     func() string
}

type AnalyzerOption func(*Analyzer)

// WithAnomalyAnalyzer enables the optional AI step. A nil analyzer leaves it disabled.
func WithAnomalyAnalyzer(ai AnomalyAnalyzer, analysisType string) AnalyzerOption {
	return func(a *Analyzer) {
		a.ai = ai
		if analysisType != "" {
			a.analysisType = analysisType
		}
	}
}

func WithLogger(logger *logrus.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

func WithRunIdGenerator(gen func() string) AnalyzerOption {
	return func(a *Analyzer) { a.newRunId = gen }
}

func NewAnalyzer(suite *controls.Suite, engine *risk.Engine, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		suite:        suite,
		engine:       engine,
		analysisType: DefaultAnalysisType,
		logger:       config.GetLogger(),
		now:          time.Now,
		newRunId:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzePopulation runs statistics, control tests, risk scoring and the optional AI
// step in that order. The results are returned side by side, never merged.
// An AI failure is logged and leaves AIFindings nil.
func (a *Analyzer) AnalyzePopulation(ctx context.Context, ref models.PopulationRef, txns []models.Transaction, areas models.AccountAreaMap) *models.AggregatedAnalysis {
	runId := a.newRunId()
	ctx = utils.SetRunIdInContext(ctx, runId)
	ctx, span := tracer.Start(ctx, "AnalyzePopulation", trace.WithAttributes(
		attribute.String("client_id", ref.ClientId),
		attribute.String("data_version", ref.DataVersion),
		attribute.String("run_id", runId),
		attribute.Int("transaction_count", len(txns)),
	))
	defer span.End()

	started := time.Now()
	result := &models.AggregatedAnalysis{
		RunId:       runId,
		Population:  ref,
		GeneratedAt: a.now(),
	}
	result.Statistics = ComputeStatistics(txns)
	result.ControlTests = a.suite.RunAll(txns, areas)
	result.RiskScoring = a.engine.ScorePopulation(txns, nil)
	result.AIFindings = a.runAnomalyAnalysis(ctx, ref, &result.Statistics)

	failed := failedControlTests(result.ControlTests)
	span.SetAttributes(
		attribute.Int("failed_control_tests", failed),
		attribute.Int("high_risk_transactions", len(result.RiskScoring.HighRiskTransactions)),
	)
	a.logger.WithFields(logrus.Fields{
		"module":                 "Workflow",
		"run_id":                 runId,
		"client_id":              ref.ClientId,
		"data_version":           ref.DataVersion,
		"transactions":           len(txns),
		"failed_control_tests":   failed,
		"high_risk_transactions": len(result.RiskScoring.HighRiskTransactions),
		"ai_findings":            result.AIFindings != nil,
		"ms":                     time.Since(started).Milliseconds(),
	}).Info("analysis completed")
	return result
}

func (a *Analyzer) runAnomalyAnalysis(ctx context.Context, ref models.PopulationRef, stats *models.PopulationStatistics) *models.AIFindings {
	if a.ai == nil {
		return nil
	}
	ctx, span := tracer.Start(ctx, "AnomalyAnalysis")
	defer span.End()

	findings, err := a.ai.Analyze(ctx, AnomalyRequest{
		Population:   ref,
		AnalysisType: a.analysisType,
		Statistics:   stats,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(a.logger, "Workflow", "AnalyzePopulation", "anomaly analysis failed", ref, err)
		return nil
	}
	return findings
}

// AttachRejectedRows records rows dropped at the boundary on the result and logs each one.
func (a *Analyzer) AttachRejectedRows(result *models.AggregatedAnalysis, rejected []models.RowError) {
	for _, r := range rejected {
		config.LogError(a.logger, "Workflow", "AttachRejectedRows", "skip malformed row", result.Population, r)
	}
	result.RejectedRowCount = len(rejected)
	result.RejectedRows = rejected
}

func failedControlTests(results []models.ControlTestResult) int {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	return failed
}
