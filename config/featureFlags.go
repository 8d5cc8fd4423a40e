package config

import (
	"os"
	"strings"
)

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AIAnalysisEnabled gates the call to the external anomaly detection service.
//
// Set via env:
// - ENABLE_AI_ANALYSIS=true
func AIAnalysisEnabled() bool {
	return boolFromEnv("ENABLE_AI_ANALYSIS", false)
}

// AnalysisCacheEnabled caches client analyses in Redis keyed by client id and data version.
//
// Set via env:
// - ENABLE_ANALYSIS_CACHE=false to disable (default enabled)
func AnalysisCacheEnabled() bool {
	return boolFromEnv("ENABLE_ANALYSIS_CACHE", true)
}

// AnalysisEventsEnabled publishes an analysis.completed message after each client analysis.
//
// Set via env:
// - ENABLE_ANALYSIS_EVENTS=true
func AnalysisEventsEnabled() bool {
	return boolFromEnv("ENABLE_ANALYSIS_EVENTS", false)
}
