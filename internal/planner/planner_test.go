package planner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"stowplan/internal/allocation"
	"stowplan/internal/db"
	"stowplan/internal/events"
	"stowplan/internal/migrate"
	"stowplan/internal/observability"
	"stowplan/internal/repo"
	"stowplan/internal/report"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return New(conn, nil,
		WithMetrics(metrics),
		WithFS(afs.New()),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func ptr[T any](v T) *T { return &v }

func mainWarehouse(t *testing.T, s Service) string {
	t.Helper()
	w, err := s.CreateWarehouse(context.Background(), WarehouseInput{
		Name: "Main",
		Zones: []ZoneInput{
			{Name: "A", Area: 1000, Height: 20, Strength: 250},
			{Name: "B", Area: 500, Height: 10, ClimateControlled: true},
		},
	})
	require.NoError(t, err)
	return w.ID
}

const inventoryCSV = `Item Name,Qty,Weight (lbs),Length,Width,Height,Climate,Priority
Pallet,2,800,4,4,5,no,
Fridge,1,600,6,4,7,yes,1
,3,10,1,1,1,no,
Crate,x,10,1,1,1,no,
`

func importInventory(t *testing.T, s Service) string {
	t.Helper()
	res, err := s.ImportInventory(context.Background(), ImportOptions{
		Filename: "inventory.csv",
		Reader:   strings.NewReader(inventoryCSV),
		BSF:      ptr(0.5),
	})
	require.NoError(t, err)
	return res.Upload.ID
}

func TestWarehouseLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id := mainWarehouse(t, s)

	w, err := s.GetWarehouse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, w.TotalArea)
	assert.Equal(t, 25000.0, w.TotalVolume)
	assert.Equal(t, 2, w.ZoneCount)
	assert.True(t, w.IsCustom)
	require.Len(t, w.Zones, 2)
	assert.Equal(t, "A", w.Zones[0].Name)
	assert.Equal(t, 1, w.Zones[1].ZoneOrder)

	c, err := s.AddZone(ctx, id, ZoneInput{Name: "C", Area: 200, Height: 8})
	require.NoError(t, err)
	assert.Equal(t, 2, c.ZoneOrder)
	assert.Equal(t, 1600.0, c.Volume)

	c, err = s.UpdateZone(ctx, c.ID, ZonePatch{Area: ptr(300.0)})
	require.NoError(t, err)
	assert.Equal(t, 2400.0, c.Volume)

	require.NoError(t, s.DeleteZone(ctx, w.Zones[1].ID))
	w, err = s.ResolveWarehouse(ctx, "Main")
	require.NoError(t, err)
	assert.Equal(t, 1300.0, w.TotalArea)
	assert.Equal(t, 2, w.ZoneCount)

	w, err = s.UpdateWarehouse(ctx, id, WarehousePatch{Description: ptr("renamed floor")})
	require.NoError(t, err)
	assert.Equal(t, "renamed floor", w.Description)

	require.NoError(t, s.DeleteWarehouse(ctx, id))
	_, err = s.GetWarehouse(ctx, id)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestWarehouseValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mainWarehouse(t, s)

	_, err := s.CreateWarehouse(ctx, WarehouseInput{Name: "Main"})
	assert.ErrorIs(t, err, repo.ErrConflict)

	_, err = s.CreateWarehouse(ctx, WarehouseInput{Name: "Bad", Zones: []ZoneInput{{Name: "Z", Area: 0, Height: 10}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateWarehouse(ctx, WarehouseInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.AddZone(ctx, "missing", ZoneInput{Name: "Z", Area: 10, Height: 10})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestImportInventory(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.ImportInventory(ctx, ImportOptions{Filename: "inventory.csv", Reader: strings.NewReader(inventoryCSV)})
	require.NoError(t, err)
	assert.Equal(t, "inventory", res.Upload.Name)
	assert.Equal(t, allocation.DefaultBSF, res.Upload.BSF)
	assert.Equal(t, 3, res.Stats.TotalEntries)
	assert.Equal(t, 4, res.Stats.TotalItems)
	require.Len(t, res.RowErrors, 2)
	assert.True(t, res.RowErrors[0].Skipped)
	assert.Equal(t, "quantity", res.RowErrors[1].Field)

	up, err := s.GetUpload(ctx, res.Upload.ID)
	require.NoError(t, err)
	require.Len(t, up.Items, 3)
	assert.Equal(t, "Pallet", up.Items[0].Name)
	assert.Equal(t, allocation.DefaultPriorityOrder, up.Items[0].PriorityOrder)
	assert.Equal(t, 1, up.Items[1].PriorityOrder)
	assert.True(t, up.Items[1].RequiresClimateControl)
	assert.Equal(t, 50.0, up.Items[0].PSF)
	assert.Contains(t, up.Items[0].RowData, `"item_name":"Pallet"`)
	assert.EqualValues(t, 4, up.Metadata["total_rows"])

	evts, err := s.Repo.LatestEvents(ctx, repo.EventFilters{Type: events.UploadCreated})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, res.Upload.ID, evts[0].EntityID)

	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics.RowsImported))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.RowsRejected))
}

func TestImportRejects(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.ImportInventory(ctx, ImportOptions{Filename: "inventory.pdf", Reader: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.ImportInventory(ctx, ImportOptions{Filename: "only-blank.csv", Reader: strings.NewReader("name,qty\n,2\n")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.ImportInventory(ctx, ImportOptions{Filename: "inv.csv", Reader: strings.NewReader(inventoryCSV), BSF: ptr(1.5)})
	assert.ErrorIs(t, err, allocation.ErrInvalidBSF)

	s.Config.Import.MaxRows = 2
	_, err = s.ImportInventory(ctx, ImportOptions{Filename: "inv.csv", Reader: strings.NewReader(inventoryCSV)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	uploads, err := s.ListUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestCreateUploadFromRows(t *testing.T) {
	s := newTestService(t)
	res, err := s.CreateUpload(context.Background(), UploadOptions{
		Name: "api rows",
		Rows: []map[string]string{
			{"Nomenclature": "Generator", "Sq Ft": "40", "HT": "6", "WT": "2000", "Hazmat": "yes"},
		},
	})
	require.NoError(t, err)
	up, err := s.GetUpload(context.Background(), res.Upload.ID)
	require.NoError(t, err)
	require.Len(t, up.Items, 1)
	it := up.Items[0]
	assert.Equal(t, "Generator", it.Name)
	assert.Equal(t, 40.0, it.Area)
	assert.Equal(t, 50.0, it.PSF)
	assert.True(t, it.RequiresSpecialHandling)

	_, err = s.CreateUpload(context.Background(), UploadOptions{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunAllocation(t *testing.T) {
	s := newTestService(t)
	ctx := WithActor(context.Background(), "planner-1")
	whID := mainWarehouse(t, s)
	upID := importInventory(t, s)

	a, err := s.RunAllocation(ctx, RunOptions{UploadID: upID, WarehouseID: whID})
	require.NoError(t, err)
	assert.Equal(t, "Allocation - Main", a.Name)
	assert.Equal(t, 0.5, a.BSF)
	assert.True(t, a.OverallFit)
	assert.Equal(t, 3, a.TotalAllocated)
	assert.Equal(t, 100.0, a.Result.Summary.AllocationRate)
	assert.Equal(t, "Main", a.WarehouseName)
	assert.Equal(t, "inventory", a.UploadName)

	// 48 + 36 + 1.5 sq ft of 1500
	assert.InDelta(t, 5.7, a.Result.Summary.OverallUtilization, 0.01)

	got, err := s.GetAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Result.Summary, got.Result.Summary)
	assert.Equal(t, "Main", got.WarehouseName)

	runs, err := s.ListAllocations(ctx, repo.RunFilters{WarehouseID: whID})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	evts, err := s.Repo.LatestEvents(ctx, repo.EventFilters{Type: events.AllocationRun})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "planner-1", evts[0].ActorID)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Runs))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics.ItemsAllocated))

	require.NoError(t, s.DeleteAllocation(ctx, a.ID))
	_, err = s.GetAllocation(ctx, a.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestPriorityZeroWinsTheLastSlot(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	w, err := s.CreateWarehouse(ctx, WarehouseInput{
		Name:  "Slot",
		Zones: []ZoneInput{{Name: "Only", Area: 10, Height: 10}},
	})
	require.NoError(t, err)
	up, err := s.CreateUpload(ctx, UploadOptions{
		Name: "ranked",
		BSF:  ptr(0.0),
		Rows: []map[string]string{
			{"name": "Routine", "area": "10", "height": "4", "priority": "5"},
			{"name": "Critical", "area": "10", "height": "4", "priority": "0"},
		},
	})
	require.NoError(t, err)

	a, err := s.RunAllocation(ctx, RunOptions{UploadID: up.Upload.ID, WarehouseID: w.ID})
	require.NoError(t, err)
	require.Len(t, a.Result.Zones, 1)
	require.Len(t, a.Result.Zones[0].Items, 1)
	assert.Equal(t, "Critical", a.Result.Zones[0].Items[0].Name)
	require.Len(t, a.Result.Failures, 1)
	assert.Equal(t, "Routine", a.Result.Failures[0].Name)
}

func TestRunAllocationErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	whID := mainWarehouse(t, s)
	upID := importInventory(t, s)
	empty, err := s.CreateWarehouse(ctx, WarehouseInput{Name: "Empty"})
	require.NoError(t, err)

	_, err = s.RunAllocation(ctx, RunOptions{UploadID: upID, WarehouseID: empty.ID})
	assert.ErrorIs(t, err, ErrNoZones)

	_, err = s.RunAllocation(ctx, RunOptions{UploadID: upID, WarehouseID: whID, BSF: ptr(-0.1)})
	assert.ErrorIs(t, err, allocation.ErrInvalidBSF)

	_, err = s.RunAllocation(ctx, RunOptions{UploadID: "missing", WarehouseID: whID})
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, err = s.RunAllocation(ctx, RunOptions{WarehouseID: whID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompareAllocations(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	whID := mainWarehouse(t, s)
	upID := importInventory(t, s)
	small, err := s.CreateWarehouse(ctx, WarehouseInput{
		Name:  "Small",
		Zones: []ZoneInput{{Name: "Open", Area: 500, Height: 20}},
	})
	require.NoError(t, err)

	full, err := s.RunAllocation(ctx, RunOptions{UploadID: upID, WarehouseID: whID})
	require.NoError(t, err)
	partial, err := s.RunAllocation(ctx, RunOptions{UploadID: upID, WarehouseID: small.ID})
	require.NoError(t, err)
	require.Len(t, partial.Result.Failures, 1)
	assert.Equal(t, allocation.ReasonClimate, partial.Result.Failures[0].Reason)

	cmp, err := s.CompareAllocations(ctx, []string{full.ID, partial.ID})
	require.NoError(t, err)
	require.Len(t, cmp.Results, 2)
	require.NotNil(t, cmp.BestFit)
	require.NotNil(t, cmp.BestUtilization)
	assert.Equal(t, full.ID, cmp.BestFit.ID)
	// 49.5 of 500 sq ft beats 85.5 of 1500
	assert.Equal(t, partial.ID, cmp.BestUtilization.ID)

	_, err = s.CompareAllocations(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CompareAllocations(ctx, []string{"missing"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestExportReport(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	a, err := s.RunAllocation(ctx, RunOptions{UploadID: importInventory(t, s), WarehouseID: mainWarehouse(t, s)})
	require.NoError(t, err)

	saved, err := s.ExportReport(ctx, ExportOptions{AllocationID: a.ID, Kind: report.KindCSV, Destination: "mem://localhost/out"})
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/out/Allocation_-_Main_CSV_20250102_030405.csv", saved.Location)
	assert.Equal(t, "CSV", saved.Type)
	assert.Equal(t, "2025-01-02T03:04:05Z", saved.CreatedAt)

	data, err := s.FS.DownloadWithURL(ctx, saved.Location)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Zone Name,Item Name"))

	reports, err := s.ListReports(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, saved.ID, reports[0].ID)

	var sb strings.Builder
	require.NoError(t, s.RenderReport(ctx, &sb, a.ID, report.KindHTML))
	assert.Contains(t, sb.String(), "Allocation - Main")
	assert.Contains(t, sb.String(), "2025-01-02 03:04:05 UTC")
}

func TestDeleteUploadCascades(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	upID := importInventory(t, s)
	a, err := s.RunAllocation(ctx, RunOptions{UploadID: upID, WarehouseID: mainWarehouse(t, s)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUpload(ctx, upID))
	_, err = s.GetAllocation(ctx, a.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUpload(ctx, upID), repo.ErrNotFound)
}

func TestSeed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Seed(ctx, SeedOptions{Clear: true, WithAllocation: true})
	require.NoError(t, err)
	assert.Len(t, res.Warehouses, 3)
	assert.Len(t, res.Uploads, 2)
	require.Len(t, res.Allocations, 2)

	up, err := s.GetUpload(ctx, res.Uploads[0])
	require.NoError(t, err)
	assert.Len(t, up.Items, 50)
	assert.Equal(t, 0.63, up.BSF)

	a, err := s.GetAllocation(ctx, res.Allocations[0])
	require.NoError(t, err)
	assert.Equal(t, "Sample Allocation - Main Distribution Center", a.Name)
	assert.False(t, a.OverallFit)
	assert.Equal(t, 50, a.Result.Summary.TotalItems)

	w, err := s.ResolveWarehouse(ctx, "Cold Storage Facility")
	require.NoError(t, err)
	assert.False(t, w.IsCustom)
	assert.Len(t, w.Zones, 3)

	// reseeding with Clear replaces rather than duplicates
	_, err = s.Seed(ctx, SeedOptions{Clear: true})
	require.NoError(t, err)
	warehouses, err := s.ListWarehouses(ctx)
	require.NoError(t, err)
	assert.Len(t, warehouses, 3)
}
