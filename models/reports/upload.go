package reports

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/audit_backend/config"
	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/utils"
)

func ExportObjectName(report *models.GeneratedReport) string {
	client := report.Population.ClientId
	if client == "" {
		client = "unassigned"
	}
	return fmt.Sprintf("reports/%s/%s.xlsx", client, report.Id)
}

// UploadExport stores an exported workbook in REPORT_EXPORT_BUCKET (or GCS_BUCKET).
// Report ids hash the analysis, so an existing object already holds this workbook.
func UploadExport(ctx context.Context, report *models.GeneratedReport, data []byte) (string, error) {
	name := ExportObjectName(report)
	bucket := config.ExportBucket()

	exists, err := utils.ObjectExistsInGCS(ctx, bucket, name)
	if err != nil {
		config.LogError(config.GetLogger(), "Reports", "UploadExport", "check existing export", name, err)
	} else if exists {
		return name, nil
	}
	if err := utils.UploadBytesToGCS(ctx, bucket, name, data, XlsxContentType); err != nil {
		return "", err
	}
	return name, nil
}
