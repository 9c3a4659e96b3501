// internal/valuation/estimator.go
package valuation

import (
	"fmt"
	"math"
)

// Basis names the figure the valuation range was derived from.
type Basis string

const (
	BasisSDE     Basis = "sde"
	BasisRevenue Basis = "revenue"
	BasisNone    Basis = "none"
)

const (
	DefaultSpread            = 0.10
	DefaultConfidenceCeiling = 0.95
	DefaultConfidenceFloor   = 0.55
)

// ListingFinancials is the canonical listing shape read by the estimator.
// Any of the money fields may be nil.
type ListingFinancials struct {
	AskingPrice     *float64 `json:"askingPrice,omitempty"`
	Revenue         *float64 `json:"revenue,omitempty"`
	SDE             *float64 `json:"sde,omitempty"`
	VerticalSlug    Vertical `json:"verticalSlug"`
	Location        string   `json:"location,omitempty"`
	Description     string   `json:"description,omitempty"`
	YearsInBusiness *int     `json:"yearsInBusiness,omitempty"`
	Employees       *int     `json:"employees,omitempty"`
	TopClientShare  *float64 `json:"topClientShare,omitempty"`
	RevenueGrowth   *float64 `json:"revenueGrowth,omitempty"`
}

func (f ListingFinancials) validate() error {
	checks := []struct {
		name string
		v    *float64
	}{
		{"askingPrice", f.AskingPrice},
		{"revenue", f.Revenue},
		{"sde", f.SDE},
		{"topClientShare", f.TopClientShare},
		{"revenueGrowth", f.RevenueGrowth},
	}
	for _, c := range checks {
		if err := checkFinitePtr(c.name, c.v); err != nil {
			return err
		}
	}
	return nil
}

// ValuationResult is the output of one estimation run.
type ValuationResult struct {
	Vertical           Vertical           `json:"vertical"`
	BracketIndex       int                `json:"bracketIndex"`
	BaseMultiple       float64            `json:"baseMultiple"`
	BaseMultipleMin    float64            `json:"baseMultipleMin"`
	BaseMultipleMax    float64            `json:"baseMultipleMax"`
	AdjustedMultiple   float64            `json:"adjustedMultiple"`
	ValuationLow       float64            `json:"valuationLow"`
	ValuationHigh      float64            `json:"valuationHigh"`
	Basis              Basis              `json:"basis"`
	Spread             float64            `json:"spread"`
	Confidence         float64            `json:"confidence"`
	ConfidenceReasons  []string           `json:"confidenceReasons"`
	AppliedAdjustments []AdjustmentFactor `json:"appliedAdjustments"`
	RiskTable          []RiskEntry        `json:"riskTable"`
}

// Midpoint is the centre of the valuation range.
func (r *ValuationResult) Midpoint() float64 {
	return math.Round((r.ValuationLow + r.ValuationHigh) / 2)
}

type options struct {
	spread            float64
	confidenceCeiling float64
	confidenceFloor   float64
}

func defaultOptions() options {
	return options{
		spread:            DefaultSpread,
		confidenceCeiling: DefaultConfidenceCeiling,
		confidenceFloor:   DefaultConfidenceFloor,
	}
}

func (o options) validate() error {
	if !finite(o.spread) || o.spread < 0 || o.spread >= 1 {
		return invalidInput("spread must be within [0,1), got %v", o.spread)
	}
	if !finite(o.confidenceFloor) || !finite(o.confidenceCeiling) {
		return invalidInput("confidence bounds must be finite")
	}
	if o.confidenceFloor < 0 || o.confidenceCeiling > 1 || o.confidenceFloor > o.confidenceCeiling {
		return invalidInput("confidence bounds must satisfy 0 <= floor <= ceiling <= 1, got %v/%v",
			o.confidenceFloor, o.confidenceCeiling)
	}
	return nil
}

// Option customizes an estimation run.
type Option func(*options)

// WithSpread sets the symmetric low/high spread around the point estimate.
func WithSpread(spread float64) Option {
	return func(o *options) { o.spread = spread }
}

// WithConfidenceBounds sets the starting ceiling and the floor for confidence.
func WithConfidenceBounds(floor, ceiling float64) Option {
	return func(o *options) {
		o.confidenceFloor = floor
		o.confidenceCeiling = ceiling
	}
}

// ValidateOptions reports whether opts would be accepted by EstimateValuation.
func ValidateOptions(opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o.validate()
}

// EstimateValuation selects a base multiple by revenue bracket, applies the
// adjustment signals and derives a valuation range, confidence and risk table.
//
// Missing financial fields are never an error; they lower confidence and fall
// back to conservative defaults. The table is assumed validated at load time.
func EstimateValuation(fin ListingFinancials, table *MultipleTable, signals []AdjustmentSignal, opts ...Option) (*ValuationResult, error) {
	if table == nil || len(table.Brackets) == 0 {
		return nil, fmt.Errorf("%w: empty multiple table for vertical %q", ErrInvalidConfiguration, fin.VerticalSlug)
	}
	if err := fin.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	idx, bracket := table.SelectBracket(fin.Revenue)
	base := bracket.Midpoint()

	applied, total := applyAdjustments(signals)
	adjusted := round(math.Max(0, base+total), 2)

	result := &ValuationResult{
		Vertical:           table.Vertical,
		BracketIndex:       idx,
		BaseMultiple:       round(base, 2),
		BaseMultipleMin:    bracket.SDEMultipleMin,
		BaseMultipleMax:    bracket.SDEMultipleMax,
		AdjustedMultiple:   adjusted,
		Spread:             o.spread,
		AppliedAdjustments: applied,
	}

	var point float64
	switch {
	case fin.SDE != nil && *fin.SDE > 0:
		point = adjusted * *fin.SDE
		result.Basis = BasisSDE
	case fin.Revenue != nil && *fin.Revenue > 0:
		point = *fin.Revenue * table.RevenueMultiple.Median
		result.Basis = BasisRevenue
	default:
		result.Basis = BasisNone
	}
	result.ValuationLow = math.Round(point * (1 - o.spread))
	result.ValuationHigh = math.Round(point * (1 + o.spread))

	result.Confidence, result.ConfidenceReasons = scoreConfidence(fin, o.confidenceCeiling, o.confidenceFloor)
	result.RiskTable = assessRisks(fin, signals)

	return result, nil
}
