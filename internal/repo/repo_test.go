package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stowplan/internal/db"
	"stowplan/internal/domain"
	"stowplan/internal/events"
	"stowplan/internal/migrate"
)

const ts = "2025-01-02T03:04:05Z"

func newRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Repo{DB: conn}
}

func inTx(t *testing.T, r Repo, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := r.DB.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit())
}

func TestWarehouseTotalsAndCascade(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	w := domain.Warehouse{ID: "w1", Name: "Main", IsCustom: true, CreatedAt: ts, UpdatedAt: ts}
	inTx(t, r, func(tx *sql.Tx) error {
		if err := r.InsertWarehouse(ctx, tx, w); err != nil {
			return err
		}
		for i, z := range []domain.Zone{
			{ID: "z1", WarehouseID: "w1", Name: "A", Area: 1000, Height: 20, Volume: 20000},
			{ID: "z2", WarehouseID: "w1", Name: "B", Area: 500, Height: 10, Volume: 5000, ClimateControlled: true},
		} {
			z.ZoneOrder = i
			z.CreatedAt = ts
			if err := r.InsertZone(ctx, tx, z); err != nil {
				return err
			}
		}
		return r.RefreshWarehouseTotals(ctx, tx, "w1", ts)
	})

	got, err := r.GetWarehouse(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got.TotalArea)
	assert.Equal(t, 25000.0, got.TotalVolume)
	assert.Equal(t, 2, got.ZoneCount)

	zones, err := r.ListZones(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "A", zones[0].Name)
	assert.True(t, zones[1].ClimateControlled)

	inTx(t, r, func(tx *sql.Tx) error { return r.DeleteWarehouse(ctx, tx, "w1") })
	_, err = r.GetZone(ctx, "z1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateWarehouseNameConflicts(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	inTx(t, r, func(tx *sql.Tx) error {
		return r.InsertWarehouse(ctx, tx, domain.Warehouse{ID: "w1", Name: "Main", CreatedAt: ts, UpdatedAt: ts})
	})
	tx, err := r.DB.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	err = r.InsertWarehouse(ctx, tx, domain.Warehouse{ID: "w2", Name: "Main", CreatedAt: ts, UpdatedAt: ts})
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
}

func TestMissingRowsAreNotFound(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.GetWarehouse(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.GetUpload(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.GetAllocationRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	inTx(t, r, func(tx *sql.Tx) error {
		assert.ErrorIs(t, r.DeleteZone(ctx, tx, "nope"), ErrNotFound)
		return nil
	})
}

func TestEventQueries(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	var w events.Writer

	id, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)

	inTx(t, r, func(tx *sql.Tx) error {
		for _, e := range []struct{ typ, kind, id string }{
			{events.WarehouseCreated, "warehouse", "w1"},
			{events.UploadCreated, "upload", "u1"},
			{events.AllocationRun, "allocation", "a1"},
			{events.WarehouseUpdated, "warehouse", "w1"},
		} {
			if err := w.Append(ctx, tx, e.typ, e.kind, e.id, "", nil); err != nil {
				return err
			}
		}
		return nil
	})

	latest, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest)

	recent, err := r.LatestEvents(ctx, EventFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, events.WarehouseUpdated, recent[0].Type)
	assert.Equal(t, "system", recent[0].ActorID)

	older, err := r.LatestEvents(ctx, EventFilters{Cursor: recent[1].ID})
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, events.UploadCreated, older[0].Type)

	byEntity, err := r.LatestEvents(ctx, EventFilters{EntityKind: "warehouse", EntityID: "w1"})
	require.NoError(t, err)
	assert.Len(t, byEntity, 2)

	after, err := r.EventsAfter(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, int64(3), after[0].ID)
	assert.Equal(t, "{}", after[0].Payload)
}
