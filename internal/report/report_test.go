package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/xuri/excelize/v2"

	"stowplan/internal/allocation"
)

func sampleResult(t *testing.T) allocation.Result {
	t.Helper()
	items := []allocation.Item{
		{ID: "pallet", Name: "Equipment Pallet", Category: "Equipment", Quantity: 2, Weight: 800, Length: 4, Width: 4, Height: 5, ServiceBranch: "Operations"},
		{ID: "rack", Name: "Tall Rack <System>", Category: "Equipment", Quantity: 1, Weight: 1500, Area: 25, Height: 22},
	}
	zones := []allocation.Zone{{ID: "a", Name: "Zone A", Area: 1000, Height: 20, Strength: 250}}
	res, err := allocation.Allocate(items, zones, 0.5)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	return res
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleResult(t)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Zone Name,Item Name,Category,Quantity,Height (ft),Area (sq ft),Weight (lbs),PSF,Service Branch,Priority Order,Requires Climate Control,Requires Special Handling", lines[0])
	assert.Equal(t, "Zone A,Equipment Pallet,Equipment,2,5,16,800,50,Operations,999,false,false", lines[1])
	assert.Equal(t, "", lines[2])
	assert.Equal(t, "FAILED ALLOCATIONS", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "Item Name,Category,Quantity"))
	assert.Contains(t, lines[5], "Height too tall")
}

func TestCSVWithoutFailuresHasNoFailureSection(t *testing.T) {
	res, err := allocation.Allocate(nil, []allocation.Zone{{ID: "a", Name: "A", Area: 10, Height: 10}}, 0)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, res))
	assert.NotContains(t, buf.String(), "FAILED ALLOCATIONS")
}

func TestHTMLEscapesNames(t *testing.T) {
	var buf bytes.Buffer
	meta := Meta{Title: "Run 1", WarehouseName: "Main", UploadName: "Inventory", BSF: 0.5, GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, HTML(&buf, meta, sampleResult(t)))
	out := buf.String()
	assert.Contains(t, out, "<title>Run 1</title>")
	assert.Contains(t, out, "2025-01-02 03:04:05 UTC")
	assert.Contains(t, out, "Tall Rack &lt;System&gt;")
	assert.Contains(t, out, "Not all items fit.")
	assert.Contains(t, out, "BSF 0.50")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, Meta{Title: "Run 1"}, sampleResult(t)))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Run 1\n"))
	assert.Contains(t, out, "Zone A")
	assert.Contains(t, out, "height")
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, Meta{Title: "Run 1"}, sampleResult(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Allocated", "Failed"}, f.GetSheetList())

	rows, err := f.GetRows("Allocated")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Equipment Pallet", rows[1][1])

	failed, err := f.GetRows("Failed")
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "height", failed[1][len(failed[1])-1])
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"csv": KindCSV, ".html": KindHTML, "txt": KindText, "Excel": KindXLSX} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("pdf")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "Sample_Allocation_-_Main_CSV_20250304_050607.csv", FileName("Sample Allocation - Main", KindCSV, at))
	assert.Equal(t, "Allocation_TEXT_20250304_050607.txt", FileName("///", KindText, at))
}

func TestExportToMemoryStore(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	meta := Meta{Title: "Run 1", GeneratedAt: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)}

	location, err := Export(ctx, fs, "mem://localhost/reports", KindCSV, meta, sampleResult(t))
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/reports/Run_1_CSV_20250304_050607.csv", location)

	data, err := fs.DownloadWithURL(ctx, location)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FAILED ALLOCATIONS")
}
