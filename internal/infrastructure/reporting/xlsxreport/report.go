// Package xlsxreport renders query analytics as a spreadsheet for the
// archive staff.
package xlsxreport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

const sheetName = "Queries"

var header = []string{"Query ID", "Timestamp", "Language", "Category", "Latency (ms)", "Citations", "Success"}

// Write renders events into an xlsx workbook, newest first as given.
func Write(w io.Writer, events []domain.AnalyticsEvent) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, event := range events {
		row := i + 2
		values := []any{
			event.QueryID,
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.Language,
			event.Category,
			event.Latency.Milliseconds(),
			event.CitationCount,
			event.Success,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
