package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/controls"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/models/reports"
	"github.com/mmdatafocus/audit_backend/risk"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/mmdatafocus/audit_backend/sampling"
	"github.com/mmdatafocus/audit_backend/utils"
	"github.com/mmdatafocus/audit_backend/workflow"
	"github.com/sirupsen/logrus"
)

type population struct {
	ClientId     string                  `json:"client_id"`
	DataVersion  string                  `json:"data_version"`
	Transactions []models.RawTransaction `json:"transactions"`
	AccountAreas models.AccountAreaMap   `json:"account_areas"`
}

func methodList() string {
	names := make([]string, 0, len(models.AllSamplingMethods))
	for _, m := range models.AllSamplingMethods {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// parseMethod rejects unknown --method values before any work is done.
func parseMethod(value string) (models.SamplingMethod, error) {
	m := models.SamplingMethod(strings.ToLower(strings.TrimSpace(value)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q (valid: %s)", sampling.ErrUnknownSamplingMethod, value, methodList())
	}
	return m, nil
}

// analysis-harness runs the engine offline over a JSON population and checks that
// repeated runs with the same seed and clock produce identical output.
//
// Example:
//
//	go run ./cmd/analysis-harness \
//	  --input=population.json --template=executive \
//	  --method=mus --coverage=60 --seed=42 --repeat=5 --xlsx=report.xlsx
func main() {
	var (
		input      = flag.String("input", "", "population JSON file (required)")
		rulebookAt = flag.String("rulebook", config.RulebookPath(), "rulebook JSON file (default: built-in)")
		template   = flag.String("template", string(models.TemplateComprehensive), "report template")
		method     = flag.String("method", "", "sampling method, one of "+methodList()+" (optional)")
		size       = flag.Int("size", 25, "sample size")
		coverage   = flag.String("coverage", "0", "MUS coverage target in percent")
		threshold  = flag.String("threshold", "0", "threshold amount")
		seed       = flag.Uint64("seed", 1, "sampling seed")
		repeat     = flag.Int("repeat", 1, "run count; output of every run must match the first")
		xlsxPath   = flag.String("xlsx", "", "write the exported report to this path (optional)")
		withAI     = flag.Bool("ai", false, "call the AI analysis endpoint")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "missing required flag --input")
		flag.Usage()
		os.Exit(2)
	}

	pop, err := utils.ReadJSONFile[population](*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read population: %v\n", err)
		os.Exit(2)
	}
	rb, err := rulebook.LoadFile(*rulebookAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load rulebook: %v\n", err)
		os.Exit(2)
	}
	loc := config.EngineLocation()
	txns, rejected := models.ToTransactions(pop.Transactions, loc)
	for _, r := range rejected {
		fmt.Fprintf(os.Stderr, "skipping %v\n", r)
	}

	var params *models.SamplingParameters
	if *method != "" {
		m, err := parseMethod(*method)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --method: %v\n", err)
			os.Exit(2)
		}
		cov, err := utils.ParseDecimal(*coverage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --coverage: %v\n", err)
			os.Exit(2)
		}
		thr, err := utils.ParseDecimal(*threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --threshold: %v\n", err)
			os.Exit(2)
		}
		params = &models.SamplingParameters{
			Method:          m,
			SampleSize:      *size,
			CoverageTarget:  cov,
			ThresholdAmount: thr,
			Seed:            seed,
		}
	}

	logger := logrus.New()
	opts := []workflow.AnalyzerOption{
		workflow.WithLogger(logger),
		// fixed clock and run id so repeated runs are comparable
		workflow.WithClock(func() time.Time { return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC) }),
		workflow.WithRunIdGenerator(func() string { return "analysis-harness" }),
	}
	if *withAI {
		ai, err := workflow.NewHTTPAnomalyAnalyzer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ai analysis: %v\n", err)
			os.Exit(2)
		}
		opts = append(opts, workflow.WithAnomalyAnalyzer(ai, workflow.DefaultAnalysisType))
	}
	analyzer := workflow.NewAnalyzer(
		controls.NewSuite(rb, controls.WithLocation(loc)),
		risk.NewEngine(rb, risk.WithLocation(loc)),
		opts...,
	)
	sampler := sampling.NewSampler(rb)
	ref := models.PopulationRef{ClientId: pop.ClientId, DataVersion: pop.DataVersion}
	ctx := utils.SetClientIdInContext(context.Background(), pop.ClientId)

	var first string
	var report *models.GeneratedReport
	mismatches := 0
	for i := 1; i <= *repeat; i++ {
		analysis := analyzer.AnalyzePopulation(ctx, ref, txns, pop.AccountAreas)
		analysis.RejectedRowCount = len(rejected)
		analysis.RejectedRows = rejected
		report, err = reports.Generate(analysis, models.TemplateId(*template))
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate report: %v\n", err)
			os.Exit(1)
		}
		var sample *models.SamplingResult
		if params != nil {
			if sample, err = sampler.DrawSample(txns, *params); err != nil {
				fmt.Fprintf(os.Stderr, "draw sample: %v\n", err)
				os.Exit(1)
			}
		}

		out, err := utils.MarshalToJSON(map[string]any{
			"analysis": analysis,
			"sample":   sample,
			"report":   report,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
			os.Exit(1)
		}
		if i == 1 {
			first = out
			fmt.Println(out)
			continue
		}
		if out != first {
			mismatches++
			fmt.Fprintf(os.Stderr, "run %02d: output differs from run 01\n", i)
		}
	}

	if *xlsxPath != "" {
		data, err := reports.Export(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export report: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *xlsxPath, err)
			os.Exit(1)
		}
	}

	if mismatches > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d runs were not reproducible\n", mismatches, *repeat)
		os.Exit(1)
	}
}
