package importer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stowplan/internal/allocation"
)

type Field string

const (
	FieldName            Field = "name"
	FieldDescription     Field = "description"
	FieldCategory        Field = "category"
	FieldQuantity        Field = "quantity"
	FieldWeight          Field = "weight"
	FieldLength          Field = "length"
	FieldWidth           Field = "width"
	FieldHeight          Field = "height"
	FieldArea            Field = "area"
	FieldPSF             Field = "psf"
	FieldServiceBranch   Field = "service_branch"
	FieldPriorityOrder   Field = "priority_order"
	FieldClimateControl  Field = "requires_climate_control"
	FieldSpecialHandling Field = "requires_special_handling"
)

// Aliases lists the accepted header spellings per field, in lookup order.
// The first non-empty cell wins.
var Aliases = map[Field][]string{
	FieldName:            {"name", "item_name", "description", "nomenclature"},
	FieldDescription:     {"description", "desc"},
	FieldCategory:        {"category", "type", "item_type", "class"},
	FieldQuantity:        {"quantity", "qty", "count"},
	FieldWeight:          {"weight", "weight_lbs", "wt"},
	FieldLength:          {"length", "len", "l"},
	FieldWidth:           {"width", "w"},
	FieldHeight:          {"height", "h", "ht"},
	FieldArea:            {"area", "sq_ft", "sqft", "square_feet"},
	FieldPSF:             {"psf", "lbs_per_sqft"},
	FieldServiceBranch:   {"service_branch", "service", "branch", "department", "dept", "division"},
	FieldPriorityOrder:   {"priority_order", "priority"},
	FieldClimateControl:  {"requires_climate_control", "climate_control", "climate"},
	FieldSpecialHandling: {"requires_special_handling", "special_handling", "hazmat"},
}

// Lookup returns the first non-empty value among the field's aliases.
func (r Row) Lookup(f Field) (string, bool) {
	for _, key := range Aliases[f] {
		if v := strings.TrimSpace(r[key]); v != "" {
			return v, true
		}
	}
	return "", false
}

// Record is one normalized inventory line.
type Record struct {
	Name                    string            `json:"name"`
	Description             string            `json:"description,omitempty"`
	Category                string            `json:"category,omitempty"`
	Quantity                int               `json:"quantity"`
	Weight                  float64           `json:"weight"`
	Length                  float64           `json:"length"`
	Width                   float64           `json:"width"`
	Height                  float64           `json:"height"`
	Area                    float64           `json:"area"`
	PSF                     float64           `json:"psf"`
	ServiceBranch           string            `json:"service_branch,omitempty"`
	PriorityOrder           int               `json:"priority_order"`
	RequiresClimateControl  bool              `json:"requires_climate_control"`
	RequiresSpecialHandling bool              `json:"requires_special_handling"`
	Raw                     map[string]string `json:"item_data,omitempty"`
}

// RowError reports a problem with one input row. Row is 1-based and counts
// data rows only. Skipped rows are absent from the normalized output.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Msg     string `json:"message"`
	Skipped bool   `json:"skipped"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Msg)
}

// Normalize maps rows onto Records. Rows without a name are skipped;
// unparsable cells fall back to their defaults and are reported.
func Normalize(rows []Row) ([]Record, []RowError) {
	var (
		out  []Record
		errs []RowError
	)
	for i, row := range rows {
		n := i + 1
		rec, rowErrs := normalizeRow(n, row)
		errs = append(errs, rowErrs...)
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, errs
}

func normalizeRow(n int, row Row) (*Record, []RowError) {
	var errs []RowError
	bad := func(f Field, msg string) {
		errs = append(errs, RowError{Row: n, Field: string(f), Msg: msg})
	}
	name, ok := row.Lookup(FieldName)
	if !ok {
		return nil, []RowError{{Row: n, Field: string(FieldName), Msg: "is missing", Skipped: true}}
	}
	rec := &Record{Name: name, Quantity: 1, PriorityOrder: allocation.DefaultPriorityOrder, Raw: map[string]string(row)}
	rec.Description, _ = row.Lookup(FieldDescription)
	rec.Category, _ = row.Lookup(FieldCategory)
	rec.ServiceBranch, _ = row.Lookup(FieldServiceBranch)

	if v, ok := row.Lookup(FieldQuantity); ok {
		q, err := parseNumber(v)
		switch {
		case err != nil:
			bad(FieldQuantity, fmt.Sprintf("%q is not a number", v))
		case q < 1 || q != math.Trunc(q):
			bad(FieldQuantity, fmt.Sprintf("%q is not a positive whole number", v))
		default:
			rec.Quantity = int(q)
		}
	}
	for _, m := range []struct {
		f   Field
		dst *float64
	}{
		{FieldWeight, &rec.Weight},
		{FieldLength, &rec.Length},
		{FieldWidth, &rec.Width},
		{FieldHeight, &rec.Height},
		{FieldArea, &rec.Area},
		{FieldPSF, &rec.PSF},
	} {
		v, ok := row.Lookup(m.f)
		if !ok {
			continue
		}
		x, err := parseNumber(v)
		switch {
		case err != nil:
			bad(m.f, fmt.Sprintf("%q is not a number", v))
		case x < 0:
			bad(m.f, fmt.Sprintf("%q must not be negative", v))
		default:
			*m.dst = x
		}
	}
	if v, ok := row.Lookup(FieldPriorityOrder); ok {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 {
			bad(FieldPriorityOrder, fmt.Sprintf("%q is not a non-negative integer", v))
		} else {
			rec.PriorityOrder = p
		}
	}
	for _, m := range []struct {
		f   Field
		dst *bool
	}{
		{FieldClimateControl, &rec.RequiresClimateControl},
		{FieldSpecialHandling, &rec.RequiresSpecialHandling},
	} {
		v, _ := row.Lookup(m.f)
		b, err := ParseBool(v)
		if err != nil {
			bad(m.f, err.Error())
			continue
		}
		*m.dst = b
	}

	if rec.Area == 0 && rec.Length > 0 && rec.Width > 0 {
		rec.Area = rec.Length * rec.Width
	}
	if rec.PSF == 0 && rec.Weight > 0 && rec.Area > 0 {
		rec.PSF = rec.Weight / rec.Area
	}
	return rec, errs
}

func parseNumber(v string) (float64, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return x, nil
}

// ParseBool accepts the usual spreadsheet spellings of a flag. Blank is
// false.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "no", "n", "false", "f", "0":
		return false, nil
	case "yes", "y", "true", "t", "1", "x":
		return true, nil
	}
	return false, fmt.Errorf("%q is not a yes/no value", v)
}

// Stats summarizes a set of records. Totals are per unit times quantity.
type Stats struct {
	TotalItems   int            `json:"total_items"`
	TotalEntries int            `json:"total_entries"`
	TotalWeight  float64        `json:"total_weight"`
	TotalArea    float64        `json:"total_area"`
	Categories   map[string]int `json:"categories"`
}

func Summarize(records []Record) Stats {
	s := Stats{TotalEntries: len(records), Categories: map[string]int{}}
	weight, area := decimal.Zero, decimal.Zero
	for _, r := range records {
		qty := decimal.NewFromInt(int64(r.Quantity))
		s.TotalItems += r.Quantity
		weight = weight.Add(decimal.NewFromFloat(r.Weight).Mul(qty))
		area = area.Add(decimal.NewFromFloat(r.Area).Mul(qty))
		cat := r.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		s.Categories[cat] += r.Quantity
	}
	s.TotalWeight = weight.Round(2).InexactFloat64()
	s.TotalArea = area.Round(2).InexactFloat64()
	return s
}

// CategoryNames returns the category keys sorted.
func (s Stats) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for k := range s.Categories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
