// Package seed holds the built-in demo dataset.
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"stowplan/internal/allocation"
	"stowplan/internal/importer"
)

//go:embed dataset.yml
var datasetYAML []byte

type Dataset struct {
	Warehouses []Warehouse `yaml:"warehouses"`
	Uploads    []Upload    `yaml:"uploads"`
}

type Warehouse struct {
	Name          string `yaml:"name"`
	WarehouseType string `yaml:"warehouse_type"`
	Description   string `yaml:"description"`
	Zones         []Zone `yaml:"zones"`
}

type Zone struct {
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

type Upload struct {
	Name     string  `yaml:"name"`
	Filename string  `yaml:"filename"`
	Site     string  `yaml:"site"`
	Site2    string  `yaml:"site2"`
	BSF      float64 `yaml:"bsf"`
	Batches  []Batch `yaml:"batches"`
}

type Batch struct {
	Name            string  `yaml:"name"`
	Count           int     `yaml:"count"`
	Description     string  `yaml:"description"`
	Category        string  `yaml:"category"`
	Weight          float64 `yaml:"weight"`
	Length          float64 `yaml:"length"`
	Width           float64 `yaml:"width"`
	Height          float64 `yaml:"height"`
	ServiceBranch   string  `yaml:"service_branch"`
	Climate         bool    `yaml:"climate"`
	SpecialHandling bool    `yaml:"special_handling"`
}

// Load parses the embedded dataset.
func Load() (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(datasetYAML, &ds); err != nil {
		return Dataset{}, fmt.Errorf("parse seed dataset: %w", err)
	}
	return ds, nil
}

// Records expands the upload's batches into one record per unit.
func (u Upload) Records() []importer.Record {
	var out []importer.Record
	for _, b := range u.Batches {
		for i := 1; i <= b.Count; i++ {
			rec := importer.Record{
				Name:                    fmt.Sprintf("%s %d", b.Name, i),
				Description:             b.Description,
				Category:                b.Category,
				Quantity:                1,
				Weight:                  b.Weight,
				Length:                  b.Length,
				Width:                   b.Width,
				Height:                  b.Height,
				Area:                    b.Length * b.Width,
				ServiceBranch:           b.ServiceBranch,
				PriorityOrder:           allocation.DefaultPriorityOrder,
				RequiresClimateControl:  b.Climate,
				RequiresSpecialHandling: b.SpecialHandling,
			}
			if rec.Area > 0 {
				rec.PSF = rec.Weight / rec.Area
			}
			out = append(out, rec)
		}
	}
	return out
}
