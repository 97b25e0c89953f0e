package domain

type Warehouse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	WarehouseType string  `json:"warehouse_type,omitempty"`
	Description   string  `json:"description,omitempty"`
	TotalArea     float64 `json:"total_area"`
	TotalVolume   float64 `json:"total_volume"`
	IsCustom      bool    `json:"is_custom"`
	ZoneCount     int     `json:"zone_count"`
	Zones         []Zone  `json:"zones,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type Zone struct {
	ID                string   `json:"id"`
	WarehouseID       string   `json:"warehouse_id"`
	Name              string   `json:"name"`
	ZoneOrder         int      `json:"zone_order"`
	Area              float64  `json:"area"`
	Height            float64  `json:"height"`
	Strength          float64  `json:"strength,omitempty"`
	Volume            float64  `json:"volume"`
	ClimateControlled bool     `json:"climate_controlled"`
	TemperatureMin    *float64 `json:"temperature_min,omitempty"`
	TemperatureMax    *float64 `json:"temperature_max,omitempty"`
	SpecialHandling   bool     `json:"special_handling"`
	ContainerCapacity int      `json:"container_capacity"`
	IsWeatherZone     bool     `json:"is_weather_zone"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
}

type Upload struct {
	ID           string          `json:"id"`
	Name         string          `json:"upload_name"`
	Filename     string          `json:"filename,omitempty"`
	Site         string          `json:"site,omitempty"`
	Site2        string          `json:"site2,omitempty"`
	TotalItems   int             `json:"total_items"`
	TotalEntries int             `json:"total_entries"`
	TotalWeight  float64         `json:"total_weight"`
	TotalArea    float64         `json:"total_area"`
	BSF          float64         `json:"bsf_factor"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Items        []InventoryItem `json:"items,omitempty"`
	UploadedAt   string          `json:"upload_date" format:"date-time"`
}

type InventoryItem struct {
	ID                      string  `json:"id"`
	UploadID                string  `json:"upload_id"`
	Name                    string  `json:"name"`
	Description             string  `json:"description,omitempty"`
	Quantity                int     `json:"quantity"`
	Category                string  `json:"category,omitempty"`
	Weight                  float64 `json:"weight"`
	Length                  float64 `json:"length"`
	Width                   float64 `json:"width"`
	Height                  float64 `json:"height"`
	Area                    float64 `json:"area"`
	PSF                     float64 `json:"psf"`
	ServiceBranch           string  `json:"service_branch,omitempty"`
	PriorityOrder           int     `json:"priority_order"`
	RequiresClimateControl  bool    `json:"requires_climate_control"`
	RequiresSpecialHandling bool    `json:"requires_special_handling"`
	RowData                 string  `json:"item_data,omitempty"`
	CreatedAt               string  `json:"created_at" format:"date-time"`
}

// AllocationRun is a persisted engine result. ResultJSON holds the full
// allocation.Result.
type AllocationRun struct {
	ID             string  `json:"id"`
	UploadID       string  `json:"upload_id"`
	WarehouseID    string  `json:"warehouse_id"`
	Name           string  `json:"result_name"`
	BSF            float64 `json:"bsf_factor"`
	TotalAllocated int     `json:"total_allocated"`
	TotalFailed    int     `json:"total_failed"`
	OverallFit     bool    `json:"overall_fit"`
	ResultJSON     string  `json:"-"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type SavedReport struct {
	ID           string `json:"id"`
	AllocationID string `json:"allocation_id"`
	Name         string `json:"report_name"`
	Type         string `json:"report_type" enum:"HTML,CSV,TEXT,XLSX"`
	Location     string `json:"location,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
