package allocation

import (
	"fmt"
	"sort"
)

// Engine places items into zones with a height-first greedy heuristic.
// An Engine holds no run state and is safe for concurrent use.
type Engine struct {
	BSF float64
}

// New returns an Engine using the given broken stow factor.
func New(bsf float64) Engine {
	return Engine{BSF: bsf}
}

// Allocate runs one allocation with the given broken stow factor.
func Allocate(items []Item, zones []Zone, bsf float64) (Result, error) {
	return New(bsf).Allocate(items, zones)
}

// workingZone is the per-run mutable view of a zone.
type workingZone struct {
	index int
	alloc ZoneAllocation
}

type candidate struct {
	zone      *workingZone
	score     int
	waste     float64
	remaining float64
}

// Allocate places every item into at most one zone. Infeasible items are
// reported as failures; an error is returned only for malformed input.
// The zones slice is never modified.
func (e Engine) Allocate(items []Item, zones []Zone) (Result, error) {
	if err := Validate(items, zones, e.BSF); err != nil {
		return Result{}, err
	}

	working := make([]*workingZone, len(zones))
	for i, z := range zones {
		working[i] = &workingZone{
			index: i,
			alloc: ZoneAllocation{
				Zone:          z,
				Items:         []AllocatedItem{},
				RemainingArea: z.Area,
			},
		}
	}

	var failures []Failure
	for _, it := range sortItems(items) {
		required := it.Area * float64(it.Quantity) * (1 + e.BSF)
		best := selectZone(eligible(it, required, working))
		if best == nil {
			failures = append(failures, diagnose(it, required, zones))
			continue
		}
		best.place(it, required)
	}
	if failures == nil {
		failures = []Failure{}
	}

	out := Result{
		Zones:      make([]ZoneAllocation, len(working)),
		Failures:   failures,
		OverallFit: len(failures) == 0,
	}
	for i, w := range working {
		out.Zones[i] = w.alloc
	}
	out.Summary = summarize(out.Zones, failures, len(items), units(items), e.BSF)
	return out, nil
}

// sortItems returns normalized copies ordered tallest first, then by
// ascending priority order, then by id.
func sortItems(items []Item) []Item {
	sorted := make([]Item, len(items))
	for i, it := range items {
		sorted[i] = it.Normalize()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.PriorityOrder != b.PriorityOrder {
			return a.PriorityOrder < b.PriorityOrder
		}
		return a.ID < b.ID
	})
	return sorted
}

func units(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Normalize().Quantity
	}
	return n
}

// staticFit reports whether a zone's fixed attributes admit the item.
func staticFit(it Item, z Zone) bool {
	return z.Height >= it.Height &&
		(!it.RequiresClimateControl || z.ClimateControlled) &&
		(!it.RequiresSpecialHandling || z.SpecialHandling) &&
		(z.Strength == 0 || z.Strength >= it.PSF)
}

func eligible(it Item, required float64, zones []*workingZone) []candidate {
	var out []candidate
	for _, w := range zones {
		z := w.alloc.Zone
		if !staticFit(it, z) || w.alloc.RemainingArea < required {
			continue
		}
		score := 0
		if it.RequiresClimateControl && z.ClimateControlled {
			score += climateBonus
		}
		if it.RequiresSpecialHandling && z.SpecialHandling {
			score += handlingBonus
		}
		out = append(out, candidate{
			zone:      w,
			score:     score,
			waste:     z.Height - it.Height,
			remaining: w.alloc.RemainingArea,
		})
	}
	return out
}

// selectZone picks the best candidate: highest score, then least height
// waste, then most remaining area, then earliest zone.
func selectZone(cands []candidate) *workingZone {
	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best.zone
}

func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.waste != b.waste {
		return a.waste < b.waste
	}
	if a.remaining != b.remaining {
		return a.remaining > b.remaining
	}
	return a.zone.index < b.zone.index
}

func (w *workingZone) place(it Item, required float64) {
	z := w.alloc.Zone
	weight := it.Weight * float64(it.Quantity)
	w.alloc.Items = append(w.alloc.Items, AllocatedItem{
		ItemID:                  it.ID,
		Name:                    it.Name,
		Category:                it.Category,
		Quantity:                it.Quantity,
		Weight:                  it.Weight,
		TotalWeight:             weight,
		Area:                    it.Area,
		TotalArea:               required,
		Height:                  it.Height,
		PSF:                     it.PSF,
		ServiceBranch:           it.ServiceBranch,
		PriorityOrder:           it.PriorityOrder,
		RequiresClimateControl:  it.RequiresClimateControl,
		RequiresSpecialHandling: it.RequiresSpecialHandling,
		ZoneID:                  z.ID,
		ZoneName:                z.Name,
	})
	w.alloc.RemainingArea -= required
	if w.alloc.RemainingArea < 0 {
		w.alloc.RemainingArea = 0
	}
	if z.Area > 0 {
		w.alloc.AreaUtilization = (z.Area - w.alloc.RemainingArea) / z.Area * 100
	}
	w.alloc.TotalItems += it.Quantity
	w.alloc.TotalWeight += weight
	if it.Height > z.Height-heightMargin {
		w.alloc.HeightConstrainedItems++
	}
	if z.Strength > 0 && it.PSF > z.Strength*strengthMargin {
		w.alloc.StrengthConstrainedItems++
	}
	if it.PSF > w.alloc.MaxItemPSF {
		w.alloc.MaxItemPSF = it.PSF
	}
}

// diagnose explains a failed placement. Constraints are applied to the
// static zone attributes cumulatively in precedence order; the first one
// that leaves no zone standing is the reason. If every static constraint
// can be met, the failure is due to occupied area.
func diagnose(it Item, required float64, zones []Zone) Failure {
	f := Failure{
		ItemID:       it.ID,
		Name:         it.Name,
		Category:     it.Category,
		Quantity:     it.Quantity,
		Height:       it.Height,
		Area:         it.Area,
		Weight:       it.Weight,
		RequiredArea: required,
		PSF:          it.PSF,
	}
	if len(zones) == 0 {
		f.Reason = ReasonNoZones
		f.Detail = "No zones defined"
		return f
	}

	pool, maxHeight := filterZones(zones, func(z Zone) bool { return z.Height >= it.Height }, func(z Zone) float64 { return z.Height })
	if len(pool) == 0 {
		f.Reason = ReasonHeight
		f.Detail = fmt.Sprintf("Height too tall (%.1f' > %.1f')", it.Height, maxHeight)
		return f
	}
	if it.RequiresClimateControl {
		pool, _ = filterZones(pool, func(z Zone) bool { return z.ClimateControlled }, nil)
		if len(pool) == 0 {
			f.Reason = ReasonClimate
			f.Detail = "Requires climate control (no suitable zones available)"
			return f
		}
	}
	if it.RequiresSpecialHandling {
		pool, _ = filterZones(pool, func(z Zone) bool { return z.SpecialHandling }, nil)
		if len(pool) == 0 {
			f.Reason = ReasonSpecialHandling
			f.Detail = "Requires special handling (no suitable zones available)"
			return f
		}
	}
	pool, maxStrength := filterZones(pool, func(z Zone) bool { return z.Strength == 0 || z.Strength >= it.PSF }, func(z Zone) float64 { return z.Strength })
	if len(pool) == 0 {
		f.Reason = ReasonStrength
		f.Detail = fmt.Sprintf("Too heavy (%.1f PSF > %.1f PSF max)", it.PSF, maxStrength)
		return f
	}

	largest := 0.0
	for _, z := range pool {
		if z.Area > largest {
			largest = z.Area
		}
	}
	f.Reason = ReasonArea
	f.CanTheoreticallyFit = true
	if required > largest {
		f.Detail = fmt.Sprintf("Area too large (%.1f sq ft > %.1f sq ft in largest suitable zone)", required, largest)
	} else {
		f.Detail = fmt.Sprintf("Insufficient remaining area (%.1f sq ft required)", required)
	}
	return f
}

// filterZones keeps zones matching keep. When measure is set it also
// returns the largest measure over the input zones.
func filterZones(zones []Zone, keep func(Zone) bool, measure func(Zone) float64) ([]Zone, float64) {
	var out []Zone
	top := 0.0
	for _, z := range zones {
		if measure != nil && measure(z) > top {
			top = measure(z)
		}
		if keep(z) {
			out = append(out, z)
		}
	}
	return out, top
}

func summarize(zones []ZoneAllocation, failures []Failure, total, totalUnits int, bsf float64) Summary {
	s := Summary{
		TotalItems:  total,
		TotalFailed: len(failures),
		TotalUnits:  totalUnits,
		BSF:         bsf,
		ZoneStats:   make([]ZoneStat, 0, len(zones)),
	}
	for _, z := range zones {
		s.TotalAllocated += len(z.Items)
		s.AllocatedUnits += z.TotalItems
		s.TotalWarehouseArea += z.Zone.Area
		s.TotalUsedArea += z.UsedArea()
		s.ZoneStats = append(s.ZoneStats, ZoneStat{
			ZoneID:                   z.Zone.ID,
			ZoneName:                 z.Zone.Name,
			TotalItems:               z.TotalItems,
			AreaUtilization:          z.AreaUtilization,
			TotalWeight:              z.TotalWeight,
			HeightConstrainedItems:   z.HeightConstrainedItems,
			StrengthConstrainedItems: z.StrengthConstrainedItems,
		})
	}
	// An empty run trivially fits everything.
	s.AllocationRate = 100
	if total > 0 {
		s.AllocationRate = float64(s.TotalAllocated) / float64(total) * 100
	}
	if s.TotalWarehouseArea > 0 {
		s.OverallUtilization = s.TotalUsedArea / s.TotalWarehouseArea * 100
	}
	return s
}
