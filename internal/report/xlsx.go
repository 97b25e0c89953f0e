package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stowplan/internal/allocation"
)

const (
	sheetSummary   = "Summary"
	sheetAllocated = "Allocated"
	sheetFailed    = "Failed"
)

// XLSX writes a workbook with Summary, Allocated and Failed sheets.
func XLSX(w io.Writer, meta Meta, res allocation.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return err
	}
	s := res.Summary
	summary := [][]any{
		{"Report", meta.Title},
		{"Warehouse", meta.WarehouseName},
		{"Inventory", meta.UploadName},
		{"BSF", s.BSF},
		{"Item records", s.TotalItems},
		{"Allocated", s.TotalAllocated},
		{"Failed", s.TotalFailed},
		{"Allocation rate %", s.AllocationRate},
		{"Overall utilization %", s.OverallUtilization},
		{"Overall fit", res.OverallFit},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetAllocated); err != nil {
		return err
	}
	rows := [][]any{toAny(allocatedHeader)}
	for _, r := range allocatedRows(res) {
		rows = append(rows, toAny(r))
	}
	if err := writeRows(f, sheetAllocated, rows); err != nil {
		return err
	}

	if len(res.Failures) > 0 {
		if _, err := f.NewSheet(sheetFailed); err != nil {
			return err
		}
		rows := [][]any{append(toAny(failedHeader), "Reason Code")}
		for i, r := range failedRows(res) {
			rows = append(rows, append(toAny(r), string(res.Failures[i].Reason)))
		}
		if err := writeRows(f, sheetFailed, rows); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
