package allocation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidBSF is returned when the broken stow factor is outside [0,1].
var ErrInvalidBSF = errors.New("bsf must be between 0 and 1")

// ValidationError describes one malformed input record.
type ValidationError struct {
	Kind  string // "item" or "zone"
	Index int
	ID    string
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	ref := fmt.Sprintf("%s[%d]", e.Kind, e.Index)
	if e.ID != "" {
		ref = fmt.Sprintf("%s %q", e.Kind, e.ID)
	}
	return fmt.Sprintf("invalid %s: %s %s", ref, e.Field, e.Msg)
}

// ValidateBSF reports whether bsf is usable.
func ValidateBSF(bsf float64) error {
	if math.IsNaN(bsf) || bsf < 0 || bsf > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidBSF, bsf)
	}
	return nil
}

// Validate checks items and zones for malformed records. All problems are
// reported together.
func Validate(items []Item, zones []Zone, bsf float64) error {
	var errs []error
	if err := ValidateBSF(bsf); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		add := func(field, msg string) {
			errs = append(errs, ValidationError{Kind: "item", Index: i, ID: it.ID, Field: field, Msg: msg})
		}
		if strings.TrimSpace(it.ID) == "" {
			add("id", "is required")
		} else if _, dup := seen[it.ID]; dup {
			add("id", "is duplicated")
		} else {
			seen[it.ID] = struct{}{}
		}
		if strings.TrimSpace(it.Name) == "" {
			add("name", "is required")
		}
		if it.Quantity < 0 {
			add("quantity", "must not be negative")
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"weight", it.Weight},
			{"length", it.Length},
			{"width", it.Width},
			{"height", it.Height},
			{"area", it.Area},
			{"psf", it.PSF},
		} {
			if msg := badNumber(f.v); msg != "" {
				add(f.name, msg)
			}
		}
	}
	zoneIDs := make(map[string]struct{}, len(zones))
	for i, z := range zones {
		add := func(field, msg string) {
			errs = append(errs, ValidationError{Kind: "zone", Index: i, ID: z.ID, Field: field, Msg: msg})
		}
		if strings.TrimSpace(z.ID) == "" {
			add("id", "is required")
		} else if _, dup := zoneIDs[z.ID]; dup {
			add("id", "is duplicated")
		} else {
			zoneIDs[z.ID] = struct{}{}
		}
		if strings.TrimSpace(z.Name) == "" {
			add("name", "is required")
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"area", z.Area},
			{"height", z.Height},
			{"strength", z.Strength},
		} {
			if msg := badNumber(f.v); msg != "" {
				add(f.name, msg)
			}
		}
	}
	return errors.Join(errs...)
}

func badNumber(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "must be finite"
	case v < 0:
		return "must not be negative"
	}
	return ""
}

// Normalize fills derived fields: quantity defaults to 1, area falls back to
// length x width and psf to weight / area. PriorityOrder is kept as given;
// 0 ranks ahead of every other priority.
func (it Item) Normalize() Item {
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	if it.Area == 0 && it.Length > 0 && it.Width > 0 {
		it.Area = it.Length * it.Width
	}
	if it.PSF == 0 && it.Area > 0 {
		it.PSF = it.Weight / it.Area
	}
	return it
}
