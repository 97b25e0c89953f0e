package allocation

// DefaultBSF is the broken stow factor used when the caller has no
// preference: 63% of an item's footprint is added for aisles, tie-downs and
// clearances.
const DefaultBSF = 0.63

// DefaultPriorityOrder is assigned to items without an explicit priority.
const DefaultPriorityOrder = 999

const (
	climateBonus  = 1000
	handlingBonus = 1000

	// heightMargin is the ceiling clearance (ft) below which a placement
	// counts as height constrained.
	heightMargin = 0.5
	// strengthMargin is the fraction of floor strength above which a
	// placement counts as strength constrained.
	strengthMargin = 0.9
)

// Item is one inventory line. Quantity units are always placed together.
type Item struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Category                string  `json:"category,omitempty"`
	Quantity                int     `json:"quantity"`
	Weight                  float64 `json:"weight"`
	Length                  float64 `json:"length,omitempty"`
	Width                   float64 `json:"width,omitempty"`
	Height                  float64 `json:"height"`
	Area                    float64 `json:"area"`
	PSF                     float64 `json:"psf"`
	RequiresClimateControl  bool    `json:"requires_climate_control"`
	RequiresSpecialHandling bool    `json:"requires_special_handling"`
	PriorityOrder           int     `json:"priority_order"`
	ServiceBranch           string  `json:"service_branch,omitempty"`
}

// Zone is a storage zone's static description.
type Zone struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Area              float64 `json:"area"`
	Height            float64 `json:"height"`
	Strength          float64 `json:"strength"`
	ClimateControlled bool    `json:"climate_controlled"`
	SpecialHandling   bool    `json:"special_handling"`
}

// AllocatedItem is an item placed in a zone.
type AllocatedItem struct {
	ItemID                  string  `json:"item_id"`
	Name                    string  `json:"name"`
	Category                string  `json:"category,omitempty"`
	Quantity                int     `json:"quantity"`
	Weight                  float64 `json:"weight"`
	TotalWeight             float64 `json:"total_weight"`
	Area                    float64 `json:"area"`
	TotalArea               float64 `json:"total_area"`
	Height                  float64 `json:"height"`
	PSF                     float64 `json:"psf"`
	ServiceBranch           string  `json:"service_branch,omitempty"`
	PriorityOrder           int     `json:"priority_order"`
	RequiresClimateControl  bool    `json:"requires_climate_control"`
	RequiresSpecialHandling bool    `json:"requires_special_handling"`
	ZoneID                  string  `json:"zone_id"`
	ZoneName                string  `json:"zone_name"`
}

// FailureReason classifies why an item could not be placed.
type FailureReason string

const (
	ReasonNoZones         FailureReason = "no_zones"
	ReasonHeight          FailureReason = "height"
	ReasonClimate         FailureReason = "climate"
	ReasonSpecialHandling FailureReason = "special_handling"
	ReasonStrength        FailureReason = "strength"
	ReasonArea            FailureReason = "area"
)

// Reasons lists every failure reason in precedence order.
var Reasons = []FailureReason{
	ReasonNoZones,
	ReasonHeight,
	ReasonClimate,
	ReasonSpecialHandling,
	ReasonStrength,
	ReasonArea,
}

// Failure records an item that could not be placed.
type Failure struct {
	ItemID              string        `json:"item_id"`
	Name                string        `json:"name"`
	Category            string        `json:"category,omitempty"`
	Quantity            int           `json:"quantity"`
	Height              float64       `json:"height"`
	Area                float64       `json:"area"`
	Weight              float64       `json:"weight"`
	RequiredArea        float64       `json:"required_area"`
	PSF                 float64       `json:"psf"`
	Reason              FailureReason `json:"failure_reason"`
	Detail              string        `json:"failure_detail"`
	CanTheoreticallyFit bool          `json:"can_theoretically_fit"`
}

// ZoneAllocation is the final state of one zone after a run.
type ZoneAllocation struct {
	Zone                     Zone            `json:"zone"`
	Items                    []AllocatedItem `json:"allocated_items"`
	RemainingArea            float64         `json:"remaining_area"`
	AreaUtilization          float64         `json:"area_utilization"`
	TotalItems               int             `json:"total_items"`
	TotalWeight              float64         `json:"total_weight"`
	HeightConstrainedItems   int             `json:"height_constrained_items"`
	StrengthConstrainedItems int             `json:"strength_constrained_items"`
	MaxItemPSF               float64         `json:"max_item_psf"`
}

// UsedArea is the area consumed by allocated items.
func (z ZoneAllocation) UsedArea() float64 {
	return z.Zone.Area - z.RemainingArea
}

// ZoneStat is the per-zone line of a Summary.
type ZoneStat struct {
	ZoneID                   string  `json:"zone_id"`
	ZoneName                 string  `json:"zone_name"`
	TotalItems               int     `json:"total_items"`
	AreaUtilization          float64 `json:"area_utilization"`
	TotalWeight              float64 `json:"total_weight"`
	HeightConstrainedItems   int     `json:"height_constrained_items"`
	StrengthConstrainedItems int     `json:"strength_constrained_items"`
}

// Summary aggregates a run. Item counts are per item record; unit counts
// are quantity weighted.
type Summary struct {
	TotalItems         int        `json:"total_items"`
	TotalAllocated     int        `json:"total_allocated"`
	TotalFailed        int        `json:"total_failed"`
	TotalUnits         int        `json:"total_units"`
	AllocatedUnits     int        `json:"allocated_units"`
	AllocationRate     float64    `json:"allocation_rate"`
	OverallUtilization float64    `json:"overall_utilization"`
	TotalWarehouseArea float64    `json:"total_warehouse_area"`
	TotalUsedArea      float64    `json:"total_used_area"`
	BSF                float64    `json:"bsf_factor"`
	ZoneStats          []ZoneStat `json:"zone_stats"`
}

// Result is the complete outcome of one allocation run.
type Result struct {
	Zones      []ZoneAllocation `json:"zone_allocations"`
	Failures   []Failure        `json:"failures"`
	OverallFit bool             `json:"overall_fit"`
	Summary    Summary          `json:"summary"`
}

// FailuresByReason counts failures per reason.
func (r Result) FailuresByReason() map[FailureReason]int {
	out := make(map[FailureReason]int)
	for _, f := range r.Failures {
		out[f.Reason]++
	}
	return out
}
