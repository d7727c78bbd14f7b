package output

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/secwatch/accesswatch/pkg/engine"
)

// XLSXFormatter renders a report as a workbook: a summary sheet plus one
// sheet per rule that produced findings. Mirrors how reviewers file the
// monthly audit workbooks.
type XLSXFormatter struct {
	opts FormatOptions
}

// NewXLSXFormatter creates a new workbook formatter.
func NewXLSXFormatter(opts FormatOptions) *XLSXFormatter {
	return &XLSXFormatter{opts: opts}
}

// Name returns the format name.
func (f *XLSXFormatter) Name() string {
	return "xlsx"
}

var findingHeader = []any{"Severity", "Actor", "Day", "Message", "Source", "Row"}

// Format writes the workbook to w.
func (f *XLSXFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	wb := excelize.NewFile()
	defer wb.Close()

	const summarySheet = "Summary"
	if err := wb.SetSheetName(wb.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if err := f.writeSummary(wb, summarySheet, report); err != nil {
		return err
	}

	byRule := report.FindingsByRule()
	for _, id := range engine.RuleIDs() {
		findings := byRule[id]
		if len(findings) == 0 {
			continue
		}
		if err := f.writeRuleSheet(wb, id, findings); err != nil {
			return err
		}
	}

	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (f *XLSXFormatter) writeSummary(wb *excelize.File, sheet string, report *Report) error {
	rows := [][]any{
		{"Period", report.Metadata.Period},
		{"Entries analyzed", report.Summary.EntriesAnalyzed},
		{"Excluded rows", report.Summary.ExcludedRows},
		{"Total findings", report.Summary.TotalFindings},
		{"High", report.Summary.High},
		{"Medium", report.Summary.Medium},
		{"Low", report.Summary.Low},
	}
	for _, id := range engine.RuleIDs() {
		if count, ok := report.Counts[id]; ok {
			rows = append(rows, []any{fmt.Sprintf("Entries evaluated (%s)", id), count})
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}
	return wb.SetColWidth(sheet, "A", "A", 36)
}

func (f *XLSXFormatter) writeRuleSheet(wb *excelize.File, id engine.RuleID, findings []engine.Finding) error {
	// Sheet names are capped at 31 characters by the format.
	sheet := string(id)
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}

	if _, err := wb.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %q: %w", sheet, err)
	}
	if err := wb.SetSheetRow(sheet, "A1", &findingHeader); err != nil {
		return err
	}

	for i := range findings {
		fd := &findings[i]
		source, row := "", 0
		if fd.Window.Entry != nil {
			source, row = fd.Window.Entry.Source, fd.Window.Entry.Row
		}
		cells := []any{string(fd.Severity), fd.ActorID, fd.Window.Day, fd.Message, source, row}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("writing finding row: %w", err)
		}
	}

	return wb.SetColWidth(sheet, "D", "D", 60)
}
