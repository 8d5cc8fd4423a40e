package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	reportSheet          = "Report"
	summarySheet         = "Summary"
	recommendationsSheet = "Recommendations"
)

type Page struct {
	Number int      `json:"number"`
	Lines  []string `json:"lines"`
}

// Lines flattens the report into printable text lines.
func Lines(report *models.GeneratedReport) []string {
	lines := []string{report.Title, "Generated " + report.GeneratedAt.UTC().Format(time.RFC3339), ""}
	for _, s := range report.Sections {
		lines = append(lines, strings.ToUpper(s.Title))
		lines = append(lines, s.Content...)
		if s.Table != nil {
			lines = append(lines, strings.Join(s.Table.Headers, " | "))
			for _, row := range s.Table.Rows {
				lines = append(lines, strings.Join(row, " | "))
			}
		}
		lines = append(lines, "")
	}
	return lines
}

// Paginate splits the report text into pages of at most linesPerPage lines.
// A non-positive budget uses the default of 45.
func Paginate(report *models.GeneratedReport, linesPerPage int) []Page {
	if linesPerPage <= 0 {
		linesPerPage = config.DefaultLinesPerPage
	}
	lines := Lines(report)
	pages := make([]Page, 0, len(lines)/linesPerPage+1)
	for start := 0; start < len(lines); start += linesPerPage {
		end := min(start+linesPerPage, len(lines))
		pages = append(pages, Page{Number: len(pages) + 1, Lines: lines[start:end]})
	}
	return pages
}

// Export writes the report as an xlsx workbook using the REPORT_LINES_PER_PAGE budget.
func Export(report *models.GeneratedReport) ([]byte, error) {
	return ExportPaged(report, config.ReportLinesPerPage())
}

// ExportPaged writes the paginated report text to the Report sheet with a manual page
// break after every page, followed by Summary and Recommendations sheets.
func ExportPaged(report *models.GeneratedReport, linesPerPage int) ([]byte, error) {
	if report == nil {
		return nil, ErrNilAnalysis
	}
	f := excelize.NewFile()
	defer f.Close()

	stamp := report.GeneratedAt.UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:          report.Title,
		Identifier:     report.Id,
		Creator:        "audit_backend",
		LastModifiedBy: "audit_backend",
		Created:        stamp,
		Modified:       stamp,
	}); err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(reportSheet, "A", "A", 120); err != nil {
		return nil, err
	}

	row := 1
	for i, page := range Paginate(report, linesPerPage) {
		if i > 0 {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.InsertPageBreak(reportSheet, cell); err != nil {
				return nil, err
			}
		}
		for _, line := range page.Lines {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetCellValue(reportSheet, cell, line); err != nil {
				return nil, err
			}
			row++
		}
	}

	if err := writeSummarySheet(f, report); err != nil {
		return nil, err
	}
	if err := writeRecommendationsSheet(f, report); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeSummarySheet(f *excelize.File, report *models.GeneratedReport) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	s := report.Summary
	rows := [][]interface{}{
		{"Report", report.Title},
		{"Template", string(report.TemplateId)},
		{"Client", report.Population.ClientId},
		{"Overall risk", string(s.OverallRisk)},
		{"Critical issues", s.CriticalIssues},
		{"Pass rate", s.PassRate.StringFixed(2)},
		{"Action required", s.ActionRequired},
	}
	for _, k := range s.KeyFindings {
		rows = append(rows, []interface{}{"Key finding", k})
	}
	for i, r := range rows {
		if err := setRow(f, summarySheet, i+1, r...); err != nil {
			return err
		}
	}
	return nil
}

func writeRecommendationsSheet(f *excelize.File, report *models.GeneratedReport) error {
	if _, err := f.NewSheet(recommendationsSheet); err != nil {
		return err
	}
	if err := setRow(f, recommendationsSheet, 1, "Priority", "Category", "Title", "Description"); err != nil {
		return err
	}
	for i, r := range report.Recommendations {
		if err := setRow(f, recommendationsSheet, i+2, string(r.Priority), r.Category, r.Title, r.Description); err != nil {
			return err
		}
	}
	return nil
}
