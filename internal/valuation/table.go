// internal/valuation/table.go
package valuation

import (
	"fmt"
	"strings"
)

// Vertical is a marketplace business-category tenant.
type Vertical string

const (
	VerticalCleaning  Vertical = "cleaning"
	VerticalLandscape Vertical = "landscape"
	VerticalHVAC      Vertical = "hvac"
)

// ParseVertical normalizes a slug and reports whether it is a known vertical.
func ParseVertical(slug string) (Vertical, bool) {
	v := Vertical(strings.ToLower(strings.TrimSpace(slug)))
	switch v {
	case VerticalCleaning, VerticalLandscape, VerticalHVAC:
		return v, true
	}
	return v, false
}

// Bracket maps the revenue range [ThresholdLow, ThresholdHigh) to an SDE multiple range.
// A nil ThresholdHigh means unbounded.
type Bracket struct {
	ThresholdLow   float64  `json:"thresholdLow" mapstructure:"threshold_low"`
	ThresholdHigh  *float64 `json:"thresholdHigh,omitempty" mapstructure:"threshold_high"`
	SDEMultipleMin float64  `json:"sdeMultipleMin" mapstructure:"sde_multiple_min"`
	SDEMultipleMax float64  `json:"sdeMultipleMax" mapstructure:"sde_multiple_max"`
}

// Contains reports whether revenue falls inside the half-open bracket.
func (b Bracket) Contains(revenue float64) bool {
	if revenue < b.ThresholdLow {
		return false
	}
	return b.ThresholdHigh == nil || revenue < *b.ThresholdHigh
}

// Midpoint is the deterministic starting multiple for the bracket.
func (b Bracket) Midpoint() float64 {
	return (b.SDEMultipleMin + b.SDEMultipleMax) / 2
}

func (b Bracket) String() string {
	if b.ThresholdHigh == nil {
		return fmt.Sprintf("[%.0f, inf): %.2f-%.2f", b.ThresholdLow, b.SDEMultipleMin, b.SDEMultipleMax)
	}
	return fmt.Sprintf("[%.0f, %.0f): %.2f-%.2f", b.ThresholdLow, *b.ThresholdHigh, b.SDEMultipleMin, b.SDEMultipleMax)
}

// MultipleRange is a reference min/median/max multiple.
type MultipleRange struct {
	Min    float64 `json:"min" mapstructure:"min"`
	Max    float64 `json:"max" mapstructure:"max"`
	Median float64 `json:"median" mapstructure:"median"`
}

func (r MultipleRange) validate() error {
	for _, v := range []float64{r.Min, r.Median, r.Max} {
		if !finite(v) || v < 0 {
			return fmt.Errorf("multiples must be finite and >= 0, got %v", v)
		}
	}
	if r.Min > r.Median || r.Median > r.Max {
		return fmt.Errorf("expected min <= median <= max, got %v/%v/%v", r.Min, r.Median, r.Max)
	}
	return nil
}

// MultipleTable is the per-vertical valuation configuration.
// Brackets are ordered ascending, contiguous and cover [0, inf).
type MultipleTable struct {
	Vertical        Vertical      `json:"vertical" mapstructure:"vertical"`
	Brackets        []Bracket     `json:"brackets" mapstructure:"brackets"`
	RevenueMultiple MultipleRange `json:"revenueMultiple" mapstructure:"revenue_multiple"`
	EBITDAMultiple  MultipleRange `json:"ebitdaMultiple" mapstructure:"ebitda_multiple"`
}

// Validate checks bracket ordering, coverage and multiple ranges. It is meant
// to run once when configuration is loaded.
func (t *MultipleTable) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil multiple table", ErrInvalidConfiguration)
	}
	if len(t.Brackets) == 0 {
		return invalidConfig(t.Vertical, "no revenue brackets")
	}

	for i, b := range t.Brackets {
		if !finite(b.ThresholdLow) || (b.ThresholdHigh != nil && !finite(*b.ThresholdHigh)) {
			return invalidConfig(t.Vertical, "bracket %d has a non-finite threshold", i)
		}
		if !finite(b.SDEMultipleMin) || !finite(b.SDEMultipleMax) {
			return invalidConfig(t.Vertical, "bracket %d has a non-finite multiple", i)
		}
		if b.SDEMultipleMin < 0 || b.SDEMultipleMin > b.SDEMultipleMax {
			return invalidConfig(t.Vertical, "bracket %d multiple range %.2f-%.2f is invalid", i, b.SDEMultipleMin, b.SDEMultipleMax)
		}

		if i == 0 && b.ThresholdLow != 0 {
			return invalidConfig(t.Vertical, "first bracket must start at 0, starts at %v", b.ThresholdLow)
		}

		last := i == len(t.Brackets)-1
		switch {
		case b.ThresholdHigh == nil && !last:
			return invalidConfig(t.Vertical, "bracket %d is unbounded but not last", i)
		case b.ThresholdHigh != nil && last:
			return invalidConfig(t.Vertical, "last bracket must be unbounded, ends at %v", *b.ThresholdHigh)
		case b.ThresholdHigh != nil && *b.ThresholdHigh <= b.ThresholdLow:
			return invalidConfig(t.Vertical, "bracket %d thresholds are not increasing", i)
		}

		if i > 0 {
			prev := t.Brackets[i-1]
			if *prev.ThresholdHigh < b.ThresholdLow {
				return invalidConfig(t.Vertical, "gap between bracket %d and %d", i-1, i)
			}
			if *prev.ThresholdHigh > b.ThresholdLow {
				return invalidConfig(t.Vertical, "bracket %d overlaps bracket %d", i, i-1)
			}
		}
	}

	if err := t.RevenueMultiple.validate(); err != nil {
		return invalidConfig(t.Vertical, "revenue multiple: %v", err)
	}
	if err := t.EBITDAMultiple.validate(); err != nil {
		return invalidConfig(t.Vertical, "ebitda multiple: %v", err)
	}
	return nil
}

// SelectBracket returns the bracket containing revenue. Missing, zero or
// negative revenue selects the first (most conservative) bracket; revenue
// beyond every threshold selects the last.
func (t *MultipleTable) SelectBracket(revenue *float64) (int, Bracket) {
	if revenue == nil || *revenue <= 0 {
		return 0, t.Brackets[0]
	}
	for i, b := range t.Brackets {
		if b.Contains(*revenue) {
			return i, b
		}
	}
	last := len(t.Brackets) - 1
	return last, t.Brackets[last]
}
