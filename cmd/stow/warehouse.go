package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stowplan/internal/domain"
	"stowplan/internal/planner"
)

func warehouseCmd() *cobra.Command {
	wh := &cobra.Command{
		Use:   "warehouse",
		Short: "Manage warehouses",
		Long:  "Warehouses are named sites made of zones. Commands accept a warehouse id or its exact name.",
	}
	wh.AddCommand(warehouseListCmd())
	wh.AddCommand(warehouseCreateCmd())
	wh.AddCommand(warehouseShowCmd())
	wh.AddCommand(warehouseUpdateCmd())
	wh.AddCommand(warehouseDeleteCmd())
	return wh
}

func warehouseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List warehouses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				items, err := p.ListWarehouses(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Zones", "Area (sq ft)", "Volume (cu ft)", "Custom"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.WarehouseType, w.ZoneCount, w.TotalArea, w.TotalVolume, yesNo(w.IsCustom)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// zoneSpec is one entry of a --zones YAML file.
type zoneSpec struct {
	Name              string   `yaml:"name"`
	Area              float64  `yaml:"area"`
	Height            float64  `yaml:"height"`
	Strength          float64  `yaml:"strength"`
	ClimateControlled bool     `yaml:"climate_controlled"`
	TemperatureMin    *float64 `yaml:"temperature_min"`
	TemperatureMax    *float64 `yaml:"temperature_max"`
	SpecialHandling   bool     `yaml:"special_handling"`
	ContainerCapacity int      `yaml:"container_capacity"`
	IsWeatherZone     bool     `yaml:"is_weather_zone"`
}

func readZoneFile(path string) ([]planner.ZoneInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var specs []zoneSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]planner.ZoneInput, 0, len(specs))
	for _, z := range specs {
		out = append(out, planner.ZoneInput{
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
	return out, nil
}

func warehouseCreateCmd() *cobra.Command {
	var in planner.WarehouseInput
	var zonesFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			if zonesFile != "" {
				zones, err := readZoneFile(zonesFile)
				if err != nil {
					return err
				}
				in.Zones = zones
			}
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.CreateWarehouse(ctx, in)
				if err != nil {
					return err
				}
				return printWarehouse(w)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "warehouse name")
	cmd.Flags().StringVar(&in.WarehouseType, "type", "", "warehouse type")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&zonesFile, "zones", "", "YAML file with a list of zones")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func warehouseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a warehouse and its zones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.ResolveWarehouse(ctx, args[0])
				if err != nil {
					return err
				}
				return printWarehouse(w)
			})
		},
	}
}

func warehouseUpdateCmd() *cobra.Command {
	var name, whType, desc string
	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Update a warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := planner.WarehousePatch{
				Name:          optionalString(cmd, "name", name),
				WarehouseType: optionalString(cmd, "type", whType),
				Description:   optionalString(cmd, "description", desc),
			}
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.ResolveWarehouse(ctx, args[0])
				if err != nil {
					return err
				}
				w, err = p.UpdateWarehouse(ctx, w.ID, patch)
				if err != nil {
					return err
				}
				return printWarehouse(w)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&whType, "type", "", "warehouse type")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func warehouseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a warehouse, its zones and its allocation runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.ResolveWarehouse(ctx, args[0])
				if err != nil {
					return err
				}
				if err := p.DeleteWarehouse(ctx, w.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted warehouse %s (%s)\n", w.Name, w.ID)
				return nil
			})
		},
	}
}

func printWarehouse(w domain.Warehouse) error {
	if viper.GetBool("json") {
		return printJSON(w)
	}
	fmt.Printf("Warehouse: %s (%s)\n", w.Name, w.ID)
	if w.WarehouseType != "" {
		fmt.Printf("Type: %s\n", w.WarehouseType)
	}
	fmt.Printf("Total area: %.0f sq ft, volume: %.0f cu ft\n", w.TotalArea, w.TotalVolume)
	printZones(w.Zones)
	return nil
}

func printZones(zones []domain.Zone) {
	tw := newTable()
	tw.AppendHeader(table.Row{"#", "ID", "Name", "Area", "Height", "Strength (psf)", "Climate", "Special"})
	for _, z := range zones {
		strength := "-"
		if z.Strength > 0 {
			strength = fmt.Sprintf("%.0f", z.Strength)
		}
		tw.AppendRow(table.Row{z.ZoneOrder, z.ID, z.Name, z.Area, z.Height, strength, yesNo(z.ClimateControlled), yesNo(z.SpecialHandling)})
	}
	tw.Render()
}

func zoneCmd() *cobra.Command {
	zone := &cobra.Command{Use: "zone", Short: "Manage warehouse zones"}
	zone.AddCommand(zoneListCmd())
	zone.AddCommand(zoneAddCmd())
	zone.AddCommand(zoneUpdateCmd())
	zone.AddCommand(zoneDeleteCmd())
	return zone
}

func zoneListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <warehouse>",
		Short: "List zones of a warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.ResolveWarehouse(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(w.Zones)
				}
				printZones(w.Zones)
				return nil
			})
		},
	}
}

type zoneFlags struct {
	name     string
	order    int
	area     float64
	height   float64
	strength float64
	tempMin  float64
	tempMax  float64
	climate  bool
	special  bool
	weather  bool
	capacity int
}

func (f *zoneFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "zone name")
	cmd.Flags().IntVar(&f.order, "order", 0, "zone order")
	cmd.Flags().Float64Var(&f.area, "area", 0, "floor area (sq ft)")
	cmd.Flags().Float64Var(&f.height, "height", 0, "ceiling height (ft)")
	cmd.Flags().Float64Var(&f.strength, "strength", 0, "floor strength (lbs/sq ft, 0 for unrated)")
	cmd.Flags().Float64Var(&f.tempMin, "temp-min", 0, "minimum temperature")
	cmd.Flags().Float64Var(&f.tempMax, "temp-max", 0, "maximum temperature")
	cmd.Flags().BoolVar(&f.climate, "climate", false, "climate controlled")
	cmd.Flags().BoolVar(&f.special, "special-handling", false, "special handling capable")
	cmd.Flags().BoolVar(&f.weather, "weather", false, "weather zone")
	cmd.Flags().IntVar(&f.capacity, "containers", 0, "container capacity")
}

func zoneAddCmd() *cobra.Command {
	var f zoneFlags
	cmd := &cobra.Command{
		Use:   "add <warehouse>",
		Short: "Add a zone to a warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := planner.ZoneInput{
				Name:              f.name,
				ZoneOrder:         optionalInt(cmd, "order", f.order),
				Area:              f.area,
				Height:            f.height,
				Strength:          f.strength,
				ClimateControlled: f.climate,
				TemperatureMin:    optionalFloat(cmd, "temp-min", f.tempMin),
				TemperatureMax:    optionalFloat(cmd, "temp-max", f.tempMax),
				SpecialHandling:   f.special,
				ContainerCapacity: f.capacity,
				IsWeatherZone:     f.weather,
			}
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.ResolveWarehouse(ctx, args[0])
				if err != nil {
					return err
				}
				z, err := p.AddZone(ctx, w.ID, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(z)
			})
		},
	}
	f.bind(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("area")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func zoneUpdateCmd() *cobra.Command {
	var f zoneFlags
	cmd := &cobra.Command{
		Use:   "update <zone-id>",
		Short: "Update a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := planner.ZonePatch{
				Name:              optionalString(cmd, "name", f.name),
				ZoneOrder:         optionalInt(cmd, "order", f.order),
				Area:              optionalFloat(cmd, "area", f.area),
				Height:            optionalFloat(cmd, "height", f.height),
				Strength:          optionalFloat(cmd, "strength", f.strength),
				ClimateControlled: optionalBool(cmd, "climate", f.climate),
				TemperatureMin:    optionalFloat(cmd, "temp-min", f.tempMin),
				TemperatureMax:    optionalFloat(cmd, "temp-max", f.tempMax),
				SpecialHandling:   optionalBool(cmd, "special-handling", f.special),
				ContainerCapacity: optionalInt(cmd, "containers", f.capacity),
				IsWeatherZone:     optionalBool(cmd, "weather", f.weather),
			}
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				z, err := p.UpdateZone(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(z)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func zoneDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <zone-id>",
		Short: "Delete a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				return p.DeleteZone(ctx, args[0])
			})
		},
	}
}
