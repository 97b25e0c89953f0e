package planner

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"stowplan/internal/domain"
	"stowplan/internal/events"
	"stowplan/internal/logging"
	"stowplan/internal/repo"
)

type ZoneInput struct {
	Name              string
	ZoneOrder         *int
	Area              float64
	Height            float64
	Strength          float64
	ClimateControlled bool
	TemperatureMin    *float64
	TemperatureMax    *float64
	SpecialHandling   bool
	ContainerCapacity int
	IsWeatherZone     bool
}

func (z ZoneInput) validate() error {
	var problems []string
	if strings.TrimSpace(z.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !(z.Area > 0) || math.IsInf(z.Area, 0) {
		problems = append(problems, "area must be positive")
	}
	if !(z.Height > 0) || math.IsInf(z.Height, 0) {
		problems = append(problems, "height must be positive")
	}
	if z.Strength < 0 || math.IsNaN(z.Strength) || math.IsInf(z.Strength, 0) {
		problems = append(problems, "strength must not be negative")
	}
	if z.ContainerCapacity < 0 {
		problems = append(problems, "container_capacity must not be negative")
	}
	if z.TemperatureMin != nil && z.TemperatureMax != nil && *z.TemperatureMin > *z.TemperatureMax {
		problems = append(problems, "temperature_min exceeds temperature_max")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: zone %q: %s", ErrInvalidInput, z.Name, strings.Join(problems, "; "))
	}
	return nil
}

type WarehouseInput struct {
	Name          string
	WarehouseType string
	Description   string
	// Preset marks a built-in warehouse; user-defined ones are custom.
	Preset bool
	Zones  []ZoneInput
}

// CreateWarehouse stores a warehouse and its zones. Zone order defaults to
// input position.
func (s Service) CreateWarehouse(ctx context.Context, in WarehouseInput) (domain.Warehouse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Warehouse{}, fmt.Errorf("%w: warehouse name is required", ErrInvalidInput)
	}
	for _, z := range in.Zones {
		if err := z.validate(); err != nil {
			return domain.Warehouse{}, err
		}
	}
	now := s.now()
	w := domain.Warehouse{
		ID:            newID(),
		Name:          strings.TrimSpace(in.Name),
		WarehouseType: in.WarehouseType,
		Description:   in.Description,
		IsCustom:      !in.Preset,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.InsertWarehouse(ctx, tx, w); err != nil {
			return fmt.Errorf("insert warehouse: %w", err)
		}
		for i, zin := range in.Zones {
			z := zoneFromInput(w.ID, i, zin, now)
			if err := s.Repo.InsertZone(ctx, tx, z); err != nil {
				return fmt.Errorf("insert zone %q: %w", z.Name, err)
			}
		}
		if err := s.Repo.RefreshWarehouseTotals(ctx, tx, w.ID, now); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.WarehouseCreated, "warehouse", w.ID, actor(ctx),
			events.EventPayload{"name": w.Name, "zones": len(in.Zones)})
	})
	if err != nil {
		return domain.Warehouse{}, err
	}
	s.Logger.Info(ctx, "warehouse created", logging.String("warehouse_id", w.ID), logging.String("name", w.Name))
	return s.GetWarehouse(ctx, w.ID)
}

func zoneFromInput(warehouseID string, pos int, in ZoneInput, now string) domain.Zone {
	order := pos
	if in.ZoneOrder != nil {
		order = *in.ZoneOrder
	}
	return domain.Zone{
		ID:                newID(),
		WarehouseID:       warehouseID,
		Name:              strings.TrimSpace(in.Name),
		ZoneOrder:         order,
		Area:              in.Area,
		Height:            in.Height,
		Strength:          in.Strength,
		Volume:            in.Area * in.Height,
		ClimateControlled: in.ClimateControlled,
		TemperatureMin:    in.TemperatureMin,
		TemperatureMax:    in.TemperatureMax,
		SpecialHandling:   in.SpecialHandling,
		ContainerCapacity: in.ContainerCapacity,
		IsWeatherZone:     in.IsWeatherZone,
		CreatedAt:         now,
	}
}

// GetWarehouse returns the warehouse with its zones in order.
func (s Service) GetWarehouse(ctx context.Context, id string) (domain.Warehouse, error) {
	w, err := s.Repo.GetWarehouse(ctx, id)
	if err != nil {
		return domain.Warehouse{}, err
	}
	if w.Zones, err = s.Repo.ListZones(ctx, id); err != nil {
		return domain.Warehouse{}, err
	}
	return w, nil
}

// ResolveWarehouse looks a warehouse up by id, then by exact name.
func (s Service) ResolveWarehouse(ctx context.Context, ref string) (domain.Warehouse, error) {
	w, err := s.GetWarehouse(ctx, ref)
	if err == nil {
		return w, nil
	}
	byName, nameErr := s.Repo.GetWarehouseByName(ctx, ref)
	if nameErr != nil {
		return domain.Warehouse{}, err
	}
	return s.GetWarehouse(ctx, byName.ID)
}

func (s Service) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	return s.Repo.ListWarehouses(ctx)
}

type WarehousePatch struct {
	Name          *string
	WarehouseType *string
	Description   *string
}

func (s Service) UpdateWarehouse(ctx context.Context, id string, p WarehousePatch) (domain.Warehouse, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Warehouse{}, fmt.Errorf("%w: warehouse name must not be empty", ErrInvalidInput)
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.UpdateWarehouse(ctx, tx, id, repo.WarehouseUpdate{
			Name: p.Name, WarehouseType: p.WarehouseType, Description: p.Description, UpdatedAt: s.now(),
		}); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.WarehouseUpdated, "warehouse", id, actor(ctx), nil)
	})
	if err != nil {
		return domain.Warehouse{}, err
	}
	return s.GetWarehouse(ctx, id)
}

// DeleteWarehouse removes the warehouse with its zones and allocation runs.
func (s Service) DeleteWarehouse(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.DeleteWarehouse(ctx, tx, id); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.WarehouseDeleted, "warehouse", id, actor(ctx), nil)
	})
}

// AddZone appends a zone to a warehouse and refreshes its totals.
func (s Service) AddZone(ctx context.Context, warehouseID string, in ZoneInput) (domain.Zone, error) {
	if err := in.validate(); err != nil {
		return domain.Zone{}, err
	}
	if _, err := s.Repo.GetWarehouse(ctx, warehouseID); err != nil {
		return domain.Zone{}, err
	}
	now := s.now()
	var z domain.Zone
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		next, err := s.Repo.NextZoneOrder(ctx, tx, warehouseID)
		if err != nil {
			return err
		}
		z = zoneFromInput(warehouseID, next, in, now)
		if err := s.Repo.InsertZone(ctx, tx, z); err != nil {
			return fmt.Errorf("insert zone %q: %w", z.Name, err)
		}
		if err := s.Repo.RefreshWarehouseTotals(ctx, tx, warehouseID, now); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.ZoneAdded, "zone", z.ID, actor(ctx),
			events.EventPayload{"warehouse_id": warehouseID, "name": z.Name})
	})
	if err != nil {
		return domain.Zone{}, err
	}
	return z, nil
}

func (s Service) ListZones(ctx context.Context, warehouseID string) ([]domain.Zone, error) {
	if _, err := s.Repo.GetWarehouse(ctx, warehouseID); err != nil {
		return nil, err
	}
	return s.Repo.ListZones(ctx, warehouseID)
}

type ZonePatch struct {
	Name              *string
	ZoneOrder         *int
	Area              *float64
	Height            *float64
	Strength          *float64
	ClimateControlled *bool
	TemperatureMin    *float64
	TemperatureMax    *float64
	SpecialHandling   *bool
	ContainerCapacity *int
	IsWeatherZone     *bool
}

// UpdateZone applies p and recomputes the zone volume and warehouse totals.
func (s Service) UpdateZone(ctx context.Context, id string, p ZonePatch) (domain.Zone, error) {
	z, err := s.Repo.GetZone(ctx, id)
	if err != nil {
		return domain.Zone{}, err
	}
	in := ZoneInput{
		Name: z.Name, ZoneOrder: &z.ZoneOrder, Area: z.Area, Height: z.Height, Strength: z.Strength,
		ClimateControlled: z.ClimateControlled, TemperatureMin: z.TemperatureMin, TemperatureMax: z.TemperatureMax,
		SpecialHandling: z.SpecialHandling, ContainerCapacity: z.ContainerCapacity, IsWeatherZone: z.IsWeatherZone,
	}
	setIf(&in.Name, p.Name)
	if p.ZoneOrder != nil {
		in.ZoneOrder = p.ZoneOrder
	}
	setIf(&in.Area, p.Area)
	setIf(&in.Height, p.Height)
	setIf(&in.Strength, p.Strength)
	setIf(&in.ClimateControlled, p.ClimateControlled)
	setIf(&in.SpecialHandling, p.SpecialHandling)
	setIf(&in.ContainerCapacity, p.ContainerCapacity)
	setIf(&in.IsWeatherZone, p.IsWeatherZone)
	if p.TemperatureMin != nil {
		in.TemperatureMin = p.TemperatureMin
	}
	if p.TemperatureMax != nil {
		in.TemperatureMax = p.TemperatureMax
	}
	if err := in.validate(); err != nil {
		return domain.Zone{}, err
	}
	updated := zoneFromInput(z.WarehouseID, z.ZoneOrder, in, z.CreatedAt)
	updated.ID = z.ID
	now := s.now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.UpdateZone(ctx, tx, updated); err != nil {
			return err
		}
		if err := s.Repo.RefreshWarehouseTotals(ctx, tx, z.WarehouseID, now); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.ZoneUpdated, "zone", id, actor(ctx), nil)
	})
	if err != nil {
		return domain.Zone{}, err
	}
	return updated, nil
}

func (s Service) DeleteZone(ctx context.Context, id string) error {
	z, err := s.Repo.GetZone(ctx, id)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.DeleteZone(ctx, tx, id); err != nil {
			return err
		}
		if err := s.Repo.RefreshWarehouseTotals(ctx, tx, z.WarehouseID, s.now()); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.ZoneDeleted, "zone", id, actor(ctx),
			events.EventPayload{"warehouse_id": z.WarehouseID})
	})
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
