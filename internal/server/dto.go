package server

import (
	"fmt"
	"strconv"

	"stowplan/internal/domain"
	"stowplan/internal/planner"
)

// Request payloads

type ZoneRequest struct {
	Name              string   `json:"name"`
	ZoneOrder         *int     `json:"zone_order,omitempty"`
	Area              float64  `json:"area"`
	Height            float64  `json:"height"`
	Strength          float64  `json:"strength,omitempty"`
	ClimateControlled bool     `json:"climate_controlled,omitempty"`
	TemperatureMin    *float64 `json:"temperature_min,omitempty"`
	TemperatureMax    *float64 `json:"temperature_max,omitempty"`
	SpecialHandling   bool     `json:"special_handling,omitempty"`
	ContainerCapacity int      `json:"container_capacity,omitempty"`
	IsWeatherZone     bool     `json:"is_weather_zone,omitempty"`
}

func (z ZoneRequest) input() planner.ZoneInput {
	return planner.ZoneInput{
		Name:              z.Name,
		ZoneOrder:         z.ZoneOrder,
		Area:              z.Area,
		Height:            z.Height,
		Strength:          z.Strength,
		ClimateControlled: z.ClimateControlled,
		TemperatureMin:    z.TemperatureMin,
		TemperatureMax:    z.TemperatureMax,
		SpecialHandling:   z.SpecialHandling,
		ContainerCapacity: z.ContainerCapacity,
		IsWeatherZone:     z.IsWeatherZone,
	}
}

type CreateWarehouseRequest struct {
	Name          string        `json:"name"`
	WarehouseType string        `json:"warehouse_type,omitempty"`
	Description   string        `json:"description,omitempty"`
	Zones         []ZoneRequest `json:"zones,omitempty"`
}

type UpdateWarehouseRequest struct {
	Name          *string `json:"name,omitempty"`
	WarehouseType *string `json:"warehouse_type,omitempty"`
	Description   *string `json:"description,omitempty"`
}

type UpdateZoneRequest struct {
	Name              *string  `json:"name,omitempty"`
	ZoneOrder         *int     `json:"zone_order,omitempty"`
	Area              *float64 `json:"area,omitempty"`
	Height            *float64 `json:"height,omitempty"`
	Strength          *float64 `json:"strength,omitempty"`
	ClimateControlled *bool    `json:"climate_controlled,omitempty"`
	TemperatureMin    *float64 `json:"temperature_min,omitempty"`
	TemperatureMax    *float64 `json:"temperature_max,omitempty"`
	SpecialHandling   *bool    `json:"special_handling,omitempty"`
	ContainerCapacity *int     `json:"container_capacity,omitempty"`
	IsWeatherZone     *bool    `json:"is_weather_zone,omitempty"`
}

func (z UpdateZoneRequest) patch() planner.ZonePatch {
	return planner.ZonePatch{
		Name:              z.Name,
		ZoneOrder:         z.ZoneOrder,
		Area:              z.Area,
		Height:            z.Height,
		Strength:          z.Strength,
		ClimateControlled: z.ClimateControlled,
		TemperatureMin:    z.TemperatureMin,
		TemperatureMax:    z.TemperatureMax,
		SpecialHandling:   z.SpecialHandling,
		ContainerCapacity: z.ContainerCapacity,
		IsWeatherZone:     z.IsWeatherZone,
	}
}

// CreateUploadRequest carries spreadsheet rows keyed by column header. Cell
// values may be strings, numbers or booleans.
type CreateUploadRequest struct {
	Name  string           `json:"upload_name"`
	Site  string           `json:"site,omitempty"`
	Site2 string           `json:"site2,omitempty"`
	BSF   *float64         `json:"bsf_factor,omitempty"`
	Rows  []map[string]any `json:"rows"`
}

func (r CreateUploadRequest) options() planner.UploadOptions {
	rows := make([]map[string]string, 0, len(r.Rows))
	for _, in := range r.Rows {
		row := make(map[string]string, len(in))
		for k, v := range in {
			row[k] = cellString(v)
		}
		rows = append(rows, row)
	}
	return planner.UploadOptions{Name: r.Name, Site: r.Site, Site2: r.Site2, BSF: r.BSF, Rows: rows}
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

type RunAllocationRequest struct {
	UploadID    string   `json:"upload_id"`
	WarehouseID string   `json:"warehouse_id"`
	BSF         *float64 `json:"bsf_factor,omitempty" minimum:"0" maximum:"1"`
	Name        string   `json:"result_name,omitempty"`
}

type CompareAllocationsRequest struct {
	IDs []string `json:"allocation_ids" minItems:"1"`
}

type ExportReportRequest struct {
	Type string `json:"report_type" enum:"CSV,HTML,TEXT,XLSX"`
	// Destination is an afs URL such as file:///srv/reports or mem://localhost/out.
	Destination string `json:"destination,omitempty"`
}

// Response payloads

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
