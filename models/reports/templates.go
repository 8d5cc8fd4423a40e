// Package reports renders aggregated analyses into sectioned reports and exports them.
package reports

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/audit_backend/models"
)

var ErrUnknownTemplate = errors.New("unknown report template")

func section(t models.SectionType, charts, details bool) models.SectionDescriptor {
	return models.SectionDescriptor{Type: t, IncludeCharts: charts, IncludeDetails: details}
}

var templates = map[models.TemplateId]models.ReportTemplate{
	models.TemplateComprehensive: {
		Id:   models.TemplateComprehensive,
		Name: "Comprehensive audit report",
		Sections: []models.SectionDescriptor{
			section(models.SectionSummary, true, false),
			section(models.SectionControls, true, true),
			section(models.SectionRisk, true, true),
			section(models.SectionFlow, true, true),
			section(models.SectionAI, false, true),
			section(models.SectionRecommendations, false, false),
		},
	},
	models.TemplateExecutive: {
		Id:   models.TemplateExecutive,
		Name: "Executive summary",
		Sections: []models.SectionDescriptor{
			section(models.SectionSummary, true, false),
			section(models.SectionRisk, true, false),
			section(models.SectionRecommendations, false, false),
		},
	},
	models.TemplateTechnical: {
		Id:   models.TemplateTechnical,
		Name: "Technical control report",
		Sections: []models.SectionDescriptor{
			section(models.SectionControls, false, true),
			section(models.SectionRisk, false, true),
			section(models.SectionFlow, false, true),
			section(models.SectionAI, false, true),
		},
	},
}

// Template returns a copy of the named template.
func Template(id models.TemplateId) (models.ReportTemplate, error) {
	t, ok := templates[id]
	if !ok {
		return models.ReportTemplate{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	t.Sections = append([]models.SectionDescriptor(nil), t.Sections...)
	return t, nil
}

// TemplateIds lists the available templates in a stable order.
func TemplateIds() []models.TemplateId {
	return []models.TemplateId{models.TemplateComprehensive, models.TemplateExecutive, models.TemplateTechnical}
}
