package planner

import (
	"context"
	"database/sql"
	"fmt"

	"stowplan/internal/events"
	"stowplan/internal/logging"
	"stowplan/internal/seed"
)

type SeedOptions struct {
	// Clear removes all planning records first.
	Clear bool
	// WithAllocation runs the first upload against the first warehouse and
	// the second upload against the second warehouse.
	WithAllocation bool
}

type SeedResult struct {
	Warehouses  []string `json:"warehouse_ids"`
	Uploads     []string `json:"upload_ids"`
	Allocations []string `json:"allocation_ids,omitempty"`
}

// Seed loads the built-in demo warehouses and inventories.
func (s Service) Seed(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	ds, err := seed.Load()
	if err != nil {
		return SeedResult{}, err
	}
	if opts.Clear {
		if err := s.inTx(ctx, func(tx *sql.Tx) error { return s.Repo.ClearAll(ctx, tx) }); err != nil {
			return SeedResult{}, fmt.Errorf("clear data: %w", err)
		}
	}

	var out SeedResult
	for _, sw := range ds.Warehouses {
		in := WarehouseInput{
			Name:          sw.Name,
			WarehouseType: sw.WarehouseType,
			Description:   sw.Description,
			Preset:        true,
		}
		for _, z := range sw.Zones {
			in.Zones = append(in.Zones, ZoneInput{
				Name:              z.Name,
				Area:              z.Area,
				Height:            z.Height,
				Strength:          z.Strength,
				ClimateControlled: z.ClimateControlled,
				TemperatureMin:    z.TemperatureMin,
				TemperatureMax:    z.TemperatureMax,
				SpecialHandling:   z.SpecialHandling,
				ContainerCapacity: z.ContainerCapacity,
				IsWeatherZone:     z.IsWeatherZone,
			})
		}
		w, err := s.CreateWarehouse(ctx, in)
		if err != nil {
			return out, fmt.Errorf("seed warehouse %q: %w", sw.Name, err)
		}
		out.Warehouses = append(out.Warehouses, w.ID)
	}

	for _, su := range ds.Uploads {
		bsf := su.BSF
		records := su.Records()
		res, err := s.persistUpload(ctx, uploadSpec{
			name: su.Name, filename: su.Filename, site: su.Site, site2: su.Site2, bsf: &bsf,
		}, records, nil, nil, len(records))
		if err != nil {
			return out, fmt.Errorf("seed upload %q: %w", su.Name, err)
		}
		out.Uploads = append(out.Uploads, res.Upload.ID)
	}

	if opts.WithAllocation {
		for i := 0; i < len(out.Uploads) && i < len(out.Warehouses); i++ {
			a, err := s.RunAllocation(ctx, RunOptions{
				UploadID:    out.Uploads[i],
				WarehouseID: out.Warehouses[i],
				Name:        "Sample Allocation - " + ds.Warehouses[i].Name,
			})
			if err != nil {
				return out, fmt.Errorf("seed allocation: %w", err)
			}
			out.Allocations = append(out.Allocations, a.ID)
		}
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return s.Events.Append(ctx, tx, events.SeedLoaded, "seed", "", actor(ctx), events.EventPayload{
			"warehouses": len(out.Warehouses), "uploads": len(out.Uploads), "allocations": len(out.Allocations),
		})
	})
	if err != nil {
		return out, err
	}
	s.Logger.Info(ctx, "seed data loaded",
		logging.Int("warehouses", len(out.Warehouses)),
		logging.Int("uploads", len(out.Uploads)),
		logging.Int("allocations", len(out.Allocations)))
	return out, nil
}
