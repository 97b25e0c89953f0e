package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"stowplan/internal/allocation"
)

var (
	allocatedHeader = []string{
		"Zone Name", "Item Name", "Category", "Quantity", "Height (ft)", "Area (sq ft)", "Weight (lbs)",
		"PSF", "Service Branch", "Priority Order", "Requires Climate Control", "Requires Special Handling",
	}
	failedHeader = []string{
		"Item Name", "Category", "Quantity", "Height (ft)", "Area (sq ft)", "Weight (lbs)", "PSF", "Failure Reason",
	}
)

// CSV writes allocated items grouped by zone, followed by a
// FAILED ALLOCATIONS section when any item failed.
func CSV(w io.Writer, res allocation.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(allocatedHeader); err != nil {
		return err
	}
	for _, row := range allocatedRows(res) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if len(res.Failures) > 0 {
		if err := cw.WriteAll([][]string{{}, {"FAILED ALLOCATIONS"}, failedHeader}); err != nil {
			return err
		}
		for _, row := range failedRows(res) {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func allocatedRows(res allocation.Result) [][]string {
	var rows [][]string
	for _, z := range res.Zones {
		for _, it := range z.Items {
			rows = append(rows, []string{
				z.Zone.Name,
				it.Name,
				it.Category,
				strconv.Itoa(it.Quantity),
				num(it.Height),
				num(it.Area),
				num(it.Weight),
				num(it.PSF),
				it.ServiceBranch,
				strconv.Itoa(it.PriorityOrder),
				strconv.FormatBool(it.RequiresClimateControl),
				strconv.FormatBool(it.RequiresSpecialHandling),
			})
		}
	}
	return rows
}

func failedRows(res allocation.Result) [][]string {
	rows := make([][]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		rows = append(rows, []string{
			f.Name,
			f.Category,
			strconv.Itoa(f.Quantity),
			num(f.Height),
			num(f.Area),
			num(f.Weight),
			num(f.PSF),
			f.Detail,
		})
	}
	return rows
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
