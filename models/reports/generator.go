package reports

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/utils"
)

var ErrNilAnalysis = errors.New("analysis is required")

// ReportId hashes the template together with the whole analysis. Regenerating from the
// same analysis yields the same id; any change to the analysis yields a new one.
func ReportId(data *models.AggregatedAnalysis, templateId models.TemplateId) (string, error) {
	payload, err := utils.MarshalToJSON(data)
	if err != nil {
		return "", fmt.Errorf("hash analysis: %w", err)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(templateId)+"/"+payload)).String(), nil
}

// Generate renders every section of the template from data. It does no I/O and reads
// no clock; the report is stamped with the analysis time.
func Generate(data *models.AggregatedAnalysis, templateId models.TemplateId) (*models.GeneratedReport, error) {
	tmpl, err := Template(templateId)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNilAnalysis
	}

	id, err := ReportId(data, tmpl.Id)
	if err != nil {
		return nil, err
	}

	summary := BuildSummary(data)
	recs := BuildRecommendations(data, summary)

	title := tmpl.Name
	if data.Population.ClientId != "" {
		title = fmt.Sprintf("%s: %s", tmpl.Name, data.Population.ClientId)
	}
	report := &models.GeneratedReport{
		Id:              id,
		TemplateId:      tmpl.Id,
		Title:           title,
		Population:      data.Population,
		GeneratedAt:     data.GeneratedAt,
		Sections:        make([]models.ReportSection, 0, len(tmpl.Sections)),
		Summary:         summary,
		Recommendations: recs,
	}
	for _, d := range tmpl.Sections {
		render, ok := renderers[d.Type]
		if !ok {
			continue
		}
		report.Sections = append(report.Sections, render(data, summary, recs, d))
	}
	return report, nil
}
