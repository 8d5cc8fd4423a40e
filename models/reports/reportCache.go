package reports

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/utils"
)

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 600s)
	ttl := 600
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	client, _ := utils.GetClientIdFromContext(ctx)
	version, _ := utils.GetDataVersionFromContext(ctx)
	runId, _ := utils.GetRunIdFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	log.Printf("slow_report name=%s ms=%d client_id=%s data_version=%s run_id=%s correlation_id=%s extra=%v",
		name, d.Milliseconds(), client, version, runId, cid, extra)
}

func reportCacheKey(reportId string) string {
	return "audit:report:" + reportId
}

// GenerateCached returns a previously rendered report for the same analysis and template
// when ENABLE_REPORT_CACHE is on, rendering and storing it otherwise.
func GenerateCached(ctx context.Context, data *models.AggregatedAnalysis, templateId models.TemplateId) (*models.GeneratedReport, error) {
	if _, err := Template(templateId); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNilAnalysis
	}
	ctx = utils.SetRunIdInContext(ctx, data.RunId)
	ctx = utils.SetDataVersionInContext(ctx, data.Population.DataVersion)
	started := time.Now()
	defer logSlowReport(ctx, string(templateId), started, map[string]any{"sections": len(templates[templateId].Sections)})

	id, err := ReportId(data, templateId)
	if err != nil {
		return nil, err
	}
	key := reportCacheKey(id)
	if reportCacheEnabled() {
		var cached models.GeneratedReport
		if ok, err := config.GetRedisObject(ctx, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	report, err := Generate(data, templateId)
	if err != nil {
		return nil, err
	}
	if reportCacheEnabled() {
		if err := config.SetRedisObject(ctx, key, report, reportCacheTTL()); err != nil {
			config.LogError(config.GetLogger(), "Reports", "GenerateCached", "report cache write", key, err)
		}
	}
	return report, nil
}
