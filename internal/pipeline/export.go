package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"oficina/internal"
)

// ExportReport writes the report as .xlsx or .json, chosen by extension.
func ExportReport(report internal.Report, outputPath string) error {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".xlsx":
		return ExportReportToXLSX(report, outputPath)
	case ".json":
		return ExportReportToJSON(report, outputPath)
	default:
		return fmt.Errorf("unsupported report extension %q (want .xlsx or .json)", filepath.Ext(outputPath))
	}
}

func ExportReportToXLSX(report internal.Report, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"external_order_number", "outcome", "messages"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, entry := range report.Entries {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, entry.ExternalOrderNumber)
		set(2, string(entry.Outcome))
		set(3, strings.Join(entry.Messages, "; "))
	}

	summary := "summary"
	if _, err := f.NewSheet(summary); err != nil {
		return err
	}
	counts := report.Counts()
	rows := [][]any{
		{"run_id", report.RunID},
		{"account_id", report.AccountID},
		{"file", report.FileName},
		{"format", report.Format},
		{"started_at", report.StartedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"finished_at", report.FinishedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"created", counts[internal.OutcomeCreated]},
		{"updated", counts[internal.OutcomeUpdated]},
		{"skipped", counts[internal.OutcomeSkipped]},
		{"failed", counts[internal.OutcomeFailed]},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(summary, cell, &row)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func ExportReportToJSON(report internal.Report, outputPath string) error {
	blob, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, blob, 0o644)
}
