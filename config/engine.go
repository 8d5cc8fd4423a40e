package config

import (
	"os"
	"strings"
	"time"
)

const (
	DefaultTimezone     = "Europe/Oslo"
	DefaultLinesPerPage = 45
)

// EngineLocation is the timezone used to evaluate weekday, holiday and hour rules.
// ENGINE_TIMEZONE overrides the default; an unknown zone falls back to UTC.
func EngineLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("ENGINE_TIMEZONE"))
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logg.WithField("timezone", name).Warn("unknown ENGINE_TIMEZONE, using UTC")
		return time.UTC
	}
	return loc
}

func ReportLinesPerPage() int {
	n := intFromEnv("REPORT_LINES_PER_PAGE", DefaultLinesPerPage)
	if n <= 0 {
		return DefaultLinesPerPage
	}
	return n
}

func AnalysisCacheTTL() time.Duration {
	return time.Duration(intFromEnv("ANALYSIS_CACHE_TTL_SECONDS", 900)) * time.Second
}

// RulebookPath is empty when the built-in rulebook should be used.
func RulebookPath() string {
	return strings.TrimSpace(os.Getenv("RULEBOOK_PATH"))
}

type AIAnalysisSettings struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func GetAIAnalysisSettings() AIAnalysisSettings {
	return AIAnalysisSettings{
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("AI_ANALYSIS_BASE_URL")), "/"),
		APIKey:  strings.TrimSpace(os.Getenv("AI_ANALYSIS_API_KEY")),
		Timeout: time.Duration(intFromEnv("AI_ANALYSIS_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func ExportBucket() string {
	return strings.TrimSpace(os.Getenv("REPORT_EXPORT_BUCKET"))
}
