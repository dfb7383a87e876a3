package export

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"maudeflow/internal/domain"
	"maudeflow/internal/ingestion"
)

const (
	filesSheet  = "File Results"
	issuesSheet = "Validation Issues"
)

// WriteRunReport renders the run summary as an .xlsx workbook: one
// sheet of per-file load results and one of validation issues.
func WriteRunReport(summary *ingestion.RunSummary, path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	f.SetSheetName(f.GetSheetName(0), filesSheet)
	if err := writeFileResults(f, summary); err != nil {
		return err
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return fmt.Errorf("failed to create issues sheet: %w", err)
	}
	if err := writeIssues(f, summary.Issues); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func writeFileResults(f *excelize.File, summary *ingestion.RunSummary) error {
	header := []any{
		"File", "Category", "Status",
		"Physical Lines", "Logical Records", "Orphan Fragments",
		"Processed", "Loaded", "Skipped", "Errors",
		"Started", "Finished", "Error",
	}
	if err := setRow(f, filesSheet, 1, header); err != nil {
		return err
	}

	row := 2
	for _, file := range summary.Files {
		values := []any{
			file.Filename, string(file.Category), file.Status,
			file.Counters.PhysicalLines, file.Counters.LogicalRecords, file.Counters.OrphanFragments,
			file.Result.Processed, file.Result.Loaded, file.Result.Skipped, file.Result.Errors,
			file.StartedAt.Format("2006-01-02 15:04:05"), file.FinishedAt.Format("2006-01-02 15:04:05"),
			file.Err,
		}
		if err := setRow(f, filesSheet, row, values); err != nil {
			return err
		}
		row++
	}

	processed, loaded, skipped, errs := summary.Totals()
	totals := []any{
		"TOTAL", "", string(summary.State),
		"", "", "",
		processed, loaded, skipped, errs,
		summary.StartedAt.Format("2006-01-02 15:04:05"), summary.FinishedAt.Format("2006-01-02 15:04:05"),
		"",
	}
	return setRow(f, filesSheet, row+1, totals)
}

func writeIssues(f *excelize.File, issues []domain.ValidationIssue) error {
	if err := setRow(f, issuesSheet, 1, []any{"Check", "Severity", "Message", "Metrics"}); err != nil {
		return err
	}
	for i, issue := range issues {
		names := make([]string, 0, len(issue.Metrics))
		for name := range issue.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		metrics := ""
		for _, name := range names {
			if metrics != "" {
				metrics += "; "
			}
			metrics += name + "=" + strconv.FormatFloat(issue.Metrics[name], 'f', -1, 64)
		}
		values := []any{issue.Check, string(issue.Severity), issue.Message, metrics}
		if err := setRow(f, issuesSheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to compute cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
