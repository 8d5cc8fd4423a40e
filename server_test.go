package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/models/reports"
	"github.com/mmdatafocus/audit_backend/rulebook"
	"github.com/mmdatafocus/audit_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type stubTransactions struct {
	rows  []models.RawTransaction
	err   error
	calls int
}

func (s *stubTransactions) GetTransactions(ctx context.Context, clientId string, dataVersion string) ([]models.RawTransaction, error) {
	s.calls++
	return s.rows, s.err
}

type stubAreas struct{}

func (stubAreas) GetAccountAreas(ctx context.Context, clientId string) (models.AccountAreaMap, error) {
	return models.AccountAreaMap{}, nil
}

func unlocked(ctx context.Context, clientId string, scope string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	return func() {}, nil
}

func rawTxn(id, voucher, account string, debit, credit int64) models.RawTransaction {
	return models.RawTransaction{
		ID:              id,
		VoucherNumber:   voucher,
		TransactionDate: "2024-03-05",
		AccountNumber:   account,
		Debit:           decimal.NewNullDecimal(decimal.NewFromInt(debit)),
		Credit:          decimal.NewNullDecimal(decimal.NewFromInt(credit)),
	}
}

func balancedRows() []models.RawTransaction {
	return []models.RawTransaction{
		rawTxn("1", "V1", "1920", 1234, 0),
		rawTxn("2", "V1", "3000", 0, 1234),
	}
}

func newTestRouter(t *testing.T, src *stubTransactions, ready bool) (*gin.Engine, *api) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a := newAPI(rulebook.Default(), logger)
	a.loc = time.UTC
	if src == nil {
		src = &stubTransactions{}
	}
	a.service = workflow.NewService(a.analyzer, src, stubAreas{},
		workflow.WithCache(nil, 0),
		workflow.WithEventPublisher(nil),
		workflow.WithLock(unlocked),
		workflow.WithServiceLocation(time.UTC),
	)
	a.upload = func(ctx context.Context, report *models.GeneratedReport, data []byte) (string, error) {
		return reports.ExportObjectName(report), nil
	}
	return newRouter(a, func() bool { return ready }), a
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func analyze(t *testing.T, r http.Handler) *models.AggregatedAnalysis {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/analysis", analysisRequest{ClientId: "c1", Transactions: balancedRows()})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out models.AggregatedAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	return &out
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	w := doJSON(r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("expected a correlation id header")
	}
}

func TestAnalyzeHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	out := analyze(t, r)
	if len(out.ControlTests) != len(models.AllControlTests) {
		t.Fatalf("expected %d control tests, got %d", len(models.AllControlTests), len(out.ControlTests))
	}
	if out.Statistics.TransactionCount != 2 || out.Population.ClientId != "c1" || out.AIFindings != nil {
		t.Fatalf("unexpected analysis %+v", out)
	}
}

func TestAnalyzeHandler_SkipsMalformedRows(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	bad := rawTxn("3", "V2", "1920", 10, 0)
	bad.TransactionDate = "05/03/2024"
	w := doJSON(r, http.MethodPost, "/api/analysis", analysisRequest{ClientId: "c1", Transactions: append(balancedRows(), bad)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out models.AggregatedAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if out.Statistics.TransactionCount != 2 {
		t.Fatalf("expected the two valid rows analyzed, got %d", out.Statistics.TransactionCount)
	}
	if out.RejectedRowCount != 1 || len(out.RejectedRows) != 1 || out.RejectedRows[0].Row != 3 || out.RejectedRows[0].TransactionId != "3" {
		t.Fatalf("expected row 3 reported as rejected, got %+v", out.RejectedRows)
	}
}

func TestSamplingHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)

	w := doJSON(r, http.MethodPost, "/api/sampling", samplingRequest{
		Transactions: balancedRows(),
		Parameters:   models.SamplingParameters{Method: models.SamplingMethodMUS, CoverageTarget: decimal.NewFromInt(50)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res models.SamplingResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ActualSampleSize != 1 || !res.CoveragePercentage.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected sample %+v", res)
	}
	if w.Header().Get(rejectedRowsHeader) != "0" {
		t.Fatalf("expected no rejected rows, got %q", w.Header().Get(rejectedRowsHeader))
	}

	negative := rawTxn("9", "V9", "1920", 0, 0)
	negative.Debit = decimal.NewNullDecimal(decimal.NewFromInt(-5))
	w = doJSON(r, http.MethodPost, "/api/sampling", samplingRequest{
		Transactions: append(balancedRows(), negative),
		Parameters:   models.SamplingParameters{Method: models.SamplingMethodMUS, CoverageTarget: decimal.NewFromInt(50)},
	})
	if w.Code != http.StatusOK || w.Header().Get(rejectedRowsHeader) != "1" {
		t.Fatalf("expected 200 with one rejected row, got %d (%q)", w.Code, w.Header().Get(rejectedRowsHeader))
	}

	w = doJSON(r, http.MethodPost, "/api/sampling", samplingRequest{
		Transactions: balancedRows(),
		Parameters:   models.SamplingParameters{Method: "cluster", SampleSize: 1},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown method, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/sampling", samplingRequest{
		Parameters: models.SamplingParameters{Method: models.SamplingMethodSRS, SampleSize: 1},
	})
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("population is empty")) {
		t.Fatalf("expected empty population message, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReportHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	analysis := analyze(t, r)

	w := doJSON(r, http.MethodPost, "/api/reports", reportRequest{Analysis: analysis, TemplateId: models.TemplateExecutive})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var report models.GeneratedReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	expectedId, err := reports.ReportId(analysis, models.TemplateExecutive)
	if err != nil {
		t.Fatalf("report id: %v", err)
	}
	if report.Id != expectedId || len(report.Sections) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}

	if w := doJSON(r, http.MethodPost, "/api/reports", reportRequest{Analysis: analysis, TemplateId: "quarterly"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown template, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/api/reports", reportRequest{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without analysis, got %d", w.Code)
	}
}

func TestExportHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	analysis := analyze(t, r)

	w := doJSON(r, http.MethodPost, "/api/reports/export?upload=true", reportRequest{Analysis: analysis})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != reports.XlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if obj := w.Header().Get(exportObjectHeader); obj == "" {
		t.Fatalf("expected uploaded object name")
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("export is not an xlsx archive")
	}
}

func TestClientAnalysisHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	if w := doJSON(r, http.MethodPost, "/api/clients/c1/analysis", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the database is ready, got %d", w.Code)
	}

	src := &stubTransactions{rows: balancedRows()}
	r, _ = newTestRouter(t, src, true)
	w := doJSON(r, http.MethodPost, "/api/clients/c1/analysis?data_version=v2", nil)
	if w.Code != http.StatusOK || src.calls != 1 {
		t.Fatalf("expected 200 after one load, got %d (%d calls): %s", w.Code, src.calls, w.Body.String())
	}
	var out models.AggregatedAnalysis
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Population.DataVersion != "v2" || out.Statistics.TransactionCount != 2 {
		t.Fatalf("unexpected analysis %+v", out.Population)
	}

	src.err = errors.New("connection reset")
	if w := doJSON(r, http.MethodPost, "/api/clients/c1/analysis", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on source failure, got %d", w.Code)
	}
}

func pushEnvelope(data []byte) map[string]any {
	return map[string]any{
		"message":      map[string]any{"data": data, "id": "m-1"},
		"subscription": "projects/p/subscriptions/audit-analysis",
	}
}

func TestAnalysisPubSubHandler(t *testing.T) {
	src := &stubTransactions{rows: balancedRows()}
	r, _ := newTestRouter(t, src, true)

	if w := doJSON(r, http.MethodPost, "/pubsub", pushEnvelope([]byte("not json"))); w.Code != http.StatusNoContent || src.calls != 0 {
		t.Fatalf("malformed payload must be acked without work, got %d (%d calls)", w.Code, src.calls)
	}
	if w := doJSON(r, http.MethodPost, "/pubsub", pushEnvelope([]byte(`{"data_version":"v1"}`))); w.Code != http.StatusNoContent || src.calls != 0 {
		t.Fatalf("message without client must be acked without work, got %d", w.Code)
	}

	payload, _ := json.Marshal(analysisRequestMessage{ClientId: "c1", DataVersion: "v1"})
	if w := doJSON(r, http.MethodPost, "/pubsub", pushEnvelope(payload)); w.Code != http.StatusNoContent || src.calls != 1 {
		t.Fatalf("expected analysis to run, got %d (%d calls)", w.Code, src.calls)
	}

	src.err = errors.New("timeout")
	if w := doJSON(r, http.MethodPost, "/pubsub", pushEnvelope(payload)); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the message is retried, got %d", w.Code)
	}
}

func TestInvalidateAnalysisHandler(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	if w := doJSON(r, http.MethodDelete, "/api/clients/c1/analysis?data_version=v1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	r, _ := newTestRouter(t, nil, false)
	if w := doJSON(r, http.MethodGet, "/query", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := map[error]int{
		reports.ErrNilAnalysis:         http.StatusBadRequest,
		reports.ErrUnknownTemplate:     http.StatusBadRequest,
		workflow.ErrClientIdRequired:   http.StatusBadRequest,
		errors.New("database timeout"): http.StatusInternalServerError,
	}
	for err, expected := range cases {
		if got := errorStatus(err); got != expected {
			t.Fatalf("%v: expected %d, got %d", err, expected, got)
		}
	}
}
