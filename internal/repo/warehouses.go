package repo

import (
	"context"
	"database/sql"
	"errors"

	"stowplan/internal/domain"
)

const warehouseColumns = `w.id,w.name,COALESCE(w.warehouse_type,''),COALESCE(w.description,''),w.total_area,w.total_volume,w.is_custom,w.created_at,w.updated_at,
(SELECT COUNT(*) FROM zones z WHERE z.warehouse_id=w.id)`

func scanWarehouse(s interface{ Scan(...any) error }) (domain.Warehouse, error) {
	var w domain.Warehouse
	err := s.Scan(&w.ID, &w.Name, &w.WarehouseType, &w.Description, &w.TotalArea, &w.TotalVolume, &w.IsCustom, &w.CreatedAt, &w.UpdatedAt, &w.ZoneCount)
	if errors.Is(err, sql.ErrNoRows) {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertWarehouse(ctx context.Context, tx *sql.Tx, w domain.Warehouse) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO warehouses(id,name,warehouse_type,description,total_area,total_volume,is_custom,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Name, nullable(w.WarehouseType), nullable(w.Description), w.TotalArea, w.TotalVolume, w.IsCustom, w.CreatedAt, w.UpdatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetWarehouse(ctx context.Context, id string) (domain.Warehouse, error) {
	return scanWarehouse(r.DB.QueryRowContext(ctx, `SELECT `+warehouseColumns+` FROM warehouses w WHERE w.id=?`, id))
}

func (r Repo) GetWarehouseByName(ctx context.Context, name string) (domain.Warehouse, error) {
	return scanWarehouse(r.DB.QueryRowContext(ctx, `SELECT `+warehouseColumns+` FROM warehouses w WHERE w.name=?`, name))
}

func (r Repo) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+warehouseColumns+` FROM warehouses w ORDER BY w.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

type WarehouseUpdate struct {
	Name          *string
	WarehouseType *string
	Description   *string
	UpdatedAt     string
}

func (r Repo) UpdateWarehouse(ctx context.Context, tx *sql.Tx, id string, u WarehouseUpdate) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.WarehouseType != nil {
		fields = append(fields, "warehouse_type=?")
		args = append(args, nullable(*u.WarehouseType))
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*u.Description))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, u.UpdatedAt)
	return r.update(ctx, tx, "warehouses", id, fields, args)
}

func (r Repo) DeleteWarehouse(ctx context.Context, tx *sql.Tx, id string) error {
	return r.deleteByID(ctx, tx, "warehouses", id)
}

// RefreshWarehouseTotals recomputes area and volume from the warehouse's zones.
func (r Repo) RefreshWarehouseTotals(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	return expectAffected(r.q(tx).ExecContext(ctx, `UPDATE warehouses SET
total_area=(SELECT COALESCE(SUM(area),0) FROM zones WHERE warehouse_id=?),
total_volume=(SELECT COALESCE(SUM(volume),0) FROM zones WHERE warehouse_id=?),
updated_at=? WHERE id=?`, id, id, updatedAt, id))
}

const zoneColumns = `id,warehouse_id,name,zone_order,area,height,strength,volume,climate_controlled,temperature_min,temperature_max,special_handling,container_capacity,is_weather_zone,created_at`

func scanZone(s interface{ Scan(...any) error }) (domain.Zone, error) {
	var z domain.Zone
	var tmin, tmax sql.NullFloat64
	err := s.Scan(&z.ID, &z.WarehouseID, &z.Name, &z.ZoneOrder, &z.Area, &z.Height, &z.Strength, &z.Volume,
		&z.ClimateControlled, &tmin, &tmax, &z.SpecialHandling, &z.ContainerCapacity, &z.IsWeatherZone, &z.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return z, ErrNotFound
	}
	z.TemperatureMin = floatPtr(tmin)
	z.TemperatureMax = floatPtr(tmax)
	return z, err
}

func (r Repo) InsertZone(ctx context.Context, tx *sql.Tx, z domain.Zone) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO zones(`+zoneColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		z.ID, z.WarehouseID, z.Name, z.ZoneOrder, z.Area, z.Height, z.Strength, z.Volume, z.ClimateControlled,
		nullableFloatPtr(z.TemperatureMin), nullableFloatPtr(z.TemperatureMax), z.SpecialHandling, z.ContainerCapacity, z.IsWeatherZone, z.CreatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetZone(ctx context.Context, id string) (domain.Zone, error) {
	return scanZone(r.DB.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id=?`, id))
}

// ListZones returns a warehouse's zones in their configured order.
func (r Repo) ListZones(ctx context.Context, warehouseID string) ([]domain.Zone, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE warehouse_id=? ORDER BY zone_order, created_at, id`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Zone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, z)
	}
	return res, rows.Err()
}

// NextZoneOrder returns one past the highest zone_order in the warehouse.
func (r Repo) NextZoneOrder(ctx context.Context, tx *sql.Tx, warehouseID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(zone_order),-1)+1 FROM zones WHERE warehouse_id=?`, warehouseID).Scan(&n)
	return n, err
}

// UpdateZone overwrites every mutable column of z.
func (r Repo) UpdateZone(ctx context.Context, tx *sql.Tx, z domain.Zone) error {
	return r.update(ctx, tx, "zones", z.ID,
		[]string{"name=?", "zone_order=?", "area=?", "height=?", "strength=?", "volume=?", "climate_controlled=?",
			"temperature_min=?", "temperature_max=?", "special_handling=?", "container_capacity=?", "is_weather_zone=?"},
		[]any{z.Name, z.ZoneOrder, z.Area, z.Height, z.Strength, z.Volume, z.ClimateControlled,
			nullableFloatPtr(z.TemperatureMin), nullableFloatPtr(z.TemperatureMax), z.SpecialHandling, z.ContainerCapacity, z.IsWeatherZone})
}

func (r Repo) DeleteZone(ctx context.Context, tx *sql.Tx, id string) error {
	return r.deleteByID(ctx, tx, "zones", id)
}
