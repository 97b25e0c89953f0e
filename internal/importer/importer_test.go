package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stowplan/internal/allocation"
)

const sampleCSV = `Nomenclature,Type,QTY,Weight (lbs),Length,Width,Height (ft),Branch,Climate,Hazmat
Pallet,Supplies,10,800,4,4,5,Army,no,
Lab Equipment,Medical,4,400,5,4,6,Navy,yes,x
,Missing,1,1,1,1,1,,,
Desk,Furniture,three,150,6,3,4,,maybe,
`

func TestParseCSVWithAliases(t *testing.T) {
	table, err := Parse("inventory.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"nomenclature", "type", "qty", "weight", "length", "width", "height", "branch", "climate", "hazmat"}, table.Columns)
	require.Len(t, table.Rows, 4)

	records, errs := Normalize(table.Rows)
	require.Len(t, records, 3)

	pallet := records[0]
	assert.Equal(t, "Pallet", pallet.Name)
	assert.Equal(t, "Supplies", pallet.Category)
	assert.Equal(t, 10, pallet.Quantity)
	assert.Equal(t, 16.0, pallet.Area)
	assert.Equal(t, 50.0, pallet.PSF)
	assert.Equal(t, "Army", pallet.ServiceBranch)
	assert.False(t, pallet.RequiresClimateControl)

	lab := records[1]
	assert.True(t, lab.RequiresClimateControl)
	assert.True(t, lab.RequiresSpecialHandling)

	desk := records[2]
	assert.Equal(t, 1, desk.Quantity, "bad quantity keeps the default")
	assert.False(t, desk.RequiresClimateControl)

	require.Len(t, errs, 3)
	assert.Equal(t, RowError{Row: 3, Field: "name", Msg: "is missing", Skipped: true}, errs[0])
	assert.Equal(t, 4, errs[1].Row)
	assert.Equal(t, "quantity", errs[1].Field)
	assert.Equal(t, "requires_climate_control", errs[2].Field)
	assert.False(t, errs[2].Skipped)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Item Name", "Quantity", "Weight", "Area", "Height", "Priority"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Tall Rack", 3, 1500, 25, 22, 2}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Vehicle", 5, 5000, 90, 7, ""}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Parse("Inventory.XLSX", buf)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2, "blank row is dropped")

	records, errs := Normalize(table.Rows)
	assert.Empty(t, errs)
	require.Len(t, records, 2)
	assert.Equal(t, "Tall Rack", records[0].Name)
	assert.Equal(t, 3, records[0].Quantity)
	assert.Equal(t, 60.0, records[0].PSF)
	assert.Equal(t, 2, records[0].PriorityOrder)
	assert.Equal(t, allocation.DefaultPriorityOrder, records[1].PriorityOrder)
}

func TestPriorityZeroIsKept(t *testing.T) {
	table, err := Parse("p.csv", strings.NewReader("name,area,height,priority\nA,10,2,0\nB,10,2,5\nC,10,2,\nD,10,2,-1\n"))
	require.NoError(t, err)
	records, errs := Normalize(table.Rows)
	require.Len(t, records, 4)
	assert.Equal(t, 0, records[0].PriorityOrder)
	assert.Equal(t, 5, records[1].PriorityOrder)
	assert.Equal(t, allocation.DefaultPriorityOrder, records[2].PriorityOrder)
	assert.Equal(t, allocation.DefaultPriorityOrder, records[3].PriorityOrder)
	require.Len(t, errs, 1)
	assert.Equal(t, string(FieldPriorityOrder), errs[0].Field)
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("inventory.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Parse("inventory.csv", strings.NewReader("name,qty\n,\n"))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestHeaderKey(t *testing.T) {
	cases := map[string]string{
		"  Item Name ":      "item_name",
		"Weight (lbs)":      "weight",
		"Square-Feet":       "square_feet",
		"REQUIRES  CLIMATE": "requires_climate",
	}
	for in, want := range cases {
		assert.Equal(t, want, HeaderKey(in), in)
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"yes", "Y", "TRUE", "t", "1", "x", " Yes "} {
		b, err := ParseBool(v)
		require.NoError(t, err, v)
		assert.True(t, b, v)
	}
	for _, v := range []string{"", "no", "N", "false", "F", "0"} {
		b, err := ParseBool(v)
		require.NoError(t, err, v)
		assert.False(t, b, v)
	}
	_, err := ParseBool("perhaps")
	assert.Error(t, err)
}

func TestNameFallsBackToDescription(t *testing.T) {
	records, errs := Normalize([]Row{{"description": "Spare Parts Kit", "sqft": "12", "wt": "60"}})
	assert.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "Spare Parts Kit", records[0].Name)
	assert.Equal(t, "Spare Parts Kit", records[0].Description)
	assert.Equal(t, 5.0, records[0].PSF)
}

func TestNegativeDimensionIsReported(t *testing.T) {
	records, errs := Normalize([]Row{{"name": "Crate", "height": "-3", "weight": "1,200"}})
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].Height)
	assert.Equal(t, 1200.0, records[0].Weight)
	require.Len(t, errs, 1)
	assert.Equal(t, "height", errs[0].Field)
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]Record{
		{Name: "a", Category: "Supplies", Quantity: 3, Weight: 0.1, Area: 1.005},
		{Name: "b", Quantity: 2, Weight: 10, Area: 4},
		{Name: "c", Category: "Supplies", Quantity: 1, Weight: 0.2, Area: 0},
	})
	assert.Equal(t, 6, stats.TotalItems)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 20.5, stats.TotalWeight)
	assert.Equal(t, 11.02, stats.TotalArea)
	assert.Equal(t, map[string]int{"Supplies": 4, "Uncategorized": 2}, stats.Categories)
	assert.Equal(t, []string{"Supplies", "Uncategorized"}, stats.CategoryNames())
}
