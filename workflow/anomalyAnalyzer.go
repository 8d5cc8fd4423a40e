package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
)

const DefaultAnalysisType = "anomaly_detection"

var ErrAIAnalysisNotConfigured = errors.New("AI_ANALYSIS_BASE_URL is not set")

// AnomalyRequest is what the external anomaly collaborator receives.
type AnomalyRequest struct {
	Population   models.PopulationRef         `json:"population"`
	AnalysisType string                       `json:"analysis_type"`
	Statistics   *models.PopulationStatistics `json:"statistics,omitempty"`
}

// AnomalyAnalyzer is the optional AI/anomaly collaborator.
type AnomalyAnalyzer interface {
	Analyze(ctx context.Context, req AnomalyRequest) (*models.AIFindings, error)
}

type httpAnomalyAnalyzer struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

// NewHTTPAnomalyAnalyzer builds the JSON client from AI_ANALYSIS_* env settings.
// Every call is a single attempt.
func NewHTTPAnomalyAnalyzer() (AnomalyAnalyzer, error) {
	settings := config.GetAIAnalysisSettings()
	if settings.BaseURL == "" {
		return nil, ErrAIAnalysisNotConfigured
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("AI_ANALYSIS_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &httpAnomalyAnalyzer{
		baseURL:   settings.BaseURL,
		apiKey:    settings.APIKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: settings.Timeout},
	}, nil
}

func (c *httpAnomalyAnalyzer) Analyze(ctx context.Context, in AnomalyRequest) (*models.AIFindings, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analysis", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ai analysis response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai analysis error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ParseFindings(body, in.AnalysisType)
}

type rawFindings struct {
	AnalysisType    string          `json:"analysis_type"`
	KeyFindings     json.RawMessage `json:"key_findings"`
	Anomalies       json.RawMessage `json:"anomalies"`
	Patterns        json.RawMessage `json:"patterns"`
	Recommendations json.RawMessage `json:"recommendations"`
	ConfidenceScore json.RawMessage `json:"confidence_score"`
}

// ParseFindings coerces the loosely-typed collaborator payload. List fields may be a
// single string, a list of strings or a list of objects; the confidence score may be
// a number or a numeric string.
func ParseFindings(body []byte, analysisType string) (*models.AIFindings, error) {
	var raw rawFindings
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode ai findings: %w", err)
	}
	out := &models.AIFindings{
		AnalysisType:    raw.AnalysisType,
		KeyFindings:     coerceStrings(raw.KeyFindings),
		Anomalies:       coerceAnomalies(raw.Anomalies),
		Patterns:        coerceStrings(raw.Patterns),
		Recommendations: coerceStrings(raw.Recommendations),
		ConfidenceScore: coerceFloat(raw.ConfidenceScore),
	}
	if out.AnalysisType == "" {
		out.AnalysisType = analysisType
	}
	return out, nil
}

var textKeys = []string{"description", "title", "text", "message", "finding", "recommendation"}

func textOf(obj map[string]any) string {
	for _, k := range textKeys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func coerceStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var items []any
	switch x := v.(type) {
	case string:
		items = []any{x}
	case []any:
		items = x
	default:
		return nil
	}
	out := []string{}
	for _, item := range items {
		var s string
		switch x := item.(type) {
		case string:
			s = strings.TrimSpace(x)
		case map[string]any:
			s = textOf(x)
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func coerceAnomalies(raw json.RawMessage) []models.AIAnomaly {
	if len(raw) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		// a bare string is a single anomaly
		if texts := coerceStrings(raw); len(texts) > 0 {
			return []models.AIAnomaly{{Description: texts[0]}}
		}
		return nil
	}
	out := []models.AIAnomaly{}
	for _, item := range items {
		switch x := item.(type) {
		case string:
			if s := strings.TrimSpace(x); s != "" {
				out = append(out, models.AIAnomaly{Description: s})
			}
		case map[string]any:
			a := models.AIAnomaly{Description: textOf(x)}
			a.TransactionId = stringField(x, "transaction_id")
			a.Severity = stringField(x, "severity")
			if a.Description != "" || a.TransactionId != "" {
				out = append(out, a)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	switch x := obj[key].(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func coerceFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
