package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"stowplan/internal/allocation"
)

func fmtFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Table writes plain-text tables: summary, zones, then failures.
func Table(w io.Writer, meta Meta, res allocation.Result) error {
	if meta.Title != "" {
		if _, err := fmt.Fprintf(w, "%s\n", meta.Title); err != nil {
			return err
		}
	}
	s := res.Summary
	sum := table.NewWriter()
	sum.SetOutputMirror(w)
	sum.AppendHeader(table.Row{"Items", "Allocated", "Failed", "Rate %", "Utilization %", "Used sq ft", "Total sq ft", "BSF", "Fit"})
	sum.AppendRow(table.Row{s.TotalItems, s.TotalAllocated, s.TotalFailed, fmtFloat(s.AllocationRate, 1),
		fmtFloat(s.OverallUtilization, 1), fmtFloat(s.TotalUsedArea, 1), fmtFloat(s.TotalWarehouseArea, 1),
		fmtFloat(s.BSF, 2), res.OverallFit})
	sum.Render()

	zones := table.NewWriter()
	zones.SetOutputMirror(w)
	zones.AppendHeader(table.Row{"Zone", "Items", "Units", "Used %", "Free sq ft", "Weight", "Max PSF", "Height-tight", "Strength-tight"})
	for _, z := range res.Zones {
		zones.AppendRow(table.Row{z.Zone.Name, len(z.Items), z.TotalItems, fmtFloat(z.AreaUtilization, 1),
			fmtFloat(z.RemainingArea, 1), fmtFloat(z.TotalWeight, 0), fmtFloat(z.MaxItemPSF, 1),
			z.HeightConstrainedItems, z.StrengthConstrainedItems})
	}
	zones.Render()

	if len(res.Failures) == 0 {
		return nil
	}
	failed := table.NewWriter()
	failed.SetOutputMirror(w)
	failed.AppendHeader(table.Row{"Item", "Qty", "Height", "Required sq ft", "PSF", "Reason", "Detail"})
	for _, f := range res.Failures {
		failed.AppendRow(table.Row{f.Name, f.Quantity, fmtFloat(f.Height, 1), fmtFloat(f.RequiredArea, 1),
			fmtFloat(f.PSF, 1), string(f.Reason), f.Detail})
	}
	failed.Render()
	return nil
}
