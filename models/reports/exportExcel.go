package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/mmdatafocus/gelato_backoffice/workflow"
	"github.com/xuri/excelize/v2"
)

const (
	SheetUpdated    = "Updated"
	SheetUnresolved = "Unresolved"
	SheetFailed     = "Failed"
	SheetSkipped    = "Skipped"
)

// ReconciliationWorkbook renders a reconciliation report with one sheet per
// section. Zero deltas are left out of the Updated sheet.
func ReconciliationWorkbook(report *workflow.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetUpdated); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetUnresolved, SheetFailed, SheetSkipped} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	var updated [][]interface{}
	for _, d := range report.Deltas {
		if d.Delta == 0 {
			continue
		}
		updated = append(updated, []interface{}{
			d.ConferenceId, d.ProductName, d.Category.String(), d.CatalogEntryId,
			d.PreviouslyReceived, d.Received, d.Delta, d.Stock, d.Finalized,
		})
	}
	if err := writeSheet(f, SheetUpdated,
		[]string{"Conference", "Product", "Category", "CatalogId", "PreviouslyReceived", "Received", "Delta", "Stock", "Finalized"},
		updated); err != nil {
		return nil, err
	}

	var unresolved [][]interface{}
	for _, p := range report.UnresolvedProducts {
		suggestions := make([]string, 0, len(p.Suggestions))
		for _, s := range p.Suggestions {
			suggestions = append(suggestions, fmt.Sprintf("%s (%s #%d, %.2f)", s.Name, s.Category, s.CatalogId, s.Similarity))
		}
		unresolved = append(unresolved, []interface{}{
			p.Name, p.PendingQuantity, joinInts(p.ConferenceIds), strings.Join(suggestions, "; "),
		})
	}
	if err := writeSheet(f, SheetUnresolved,
		[]string{"Product", "PendingQuantity", "Conferences", "Suggestions"},
		unresolved); err != nil {
		return nil, err
	}

	var failed [][]interface{}
	for _, p := range report.FailedProducts {
		failed = append(failed, []interface{}{p.ConferenceId, p.Name, p.Stage, p.Error})
	}
	if err := writeSheet(f, SheetFailed, []string{"Conference", "Product", "Stage", "Error"}, failed); err != nil {
		return nil, err
	}

	var skipped [][]interface{}
	for _, c := range report.SkippedConferences {
		skipped = append(skipped, []interface{}{c.ConferenceId, c.Reason})
	}
	if err := writeSheet(f, SheetSkipped, []string{"Conference", "Reason"}, skipped); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteReconciliationExcel streams the workbook of report to w.
func WriteReconciliationExcel(w io.Writer, report *workflow.Report) error {
	f, err := ReconciliationWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func SaveReconciliationExcel(report *workflow.Report, filename string) error {
	f, err := ReconciliationWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}

func writeSheet(f *excelize.File, sheet string, headings []string, rows [][]interface{}) error {
	for col, h := range headings {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ",")
}
