// internal/valuation/adjustments.go
package valuation

// Factor identifies a qualitative adjustment applied to the base multiple.
type Factor string

const (
	FactorClientConcentration Factor = "client_concentration"
	FactorContractQuality     Factor = "contract_quality"
	FactorRevenueTrend        Factor = "revenue_trend"
	FactorOwnerInvolvement    Factor = "owner_involvement"
	FactorDocumentation       Factor = "documentation_quality"
	FactorEmployeeRetention   Factor = "employee_retention"
	FactorMarketGrowth        Factor = "market_growth"
)

// AdjustmentSignal is one qualitative observation about a listing.
type AdjustmentSignal struct {
	Factor    Factor `json:"factor"`
	Favorable bool   `json:"favorable"`
}

// AdjustmentFactor is an applied, explainable change to the multiple.
type AdjustmentFactor struct {
	Factor    string  `json:"factor"`
	Key       Factor  `json:"key"`
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

type adjustmentRule struct {
	magnitude            float64
	favorableLabel       string
	favorableRationale   string
	unfavorableLabel     string
	unfavorableRationale string
}

var adjustmentCatalogue = map[Factor]adjustmentRule{
	FactorClientConcentration: {
		magnitude:            0.3,
		favorableLabel:       "Diversified client base",
		favorableRationale:   "No single client dominates revenue, lowering churn risk for a buyer",
		unfavorableLabel:     "Concentrated client base",
		unfavorableRationale: "Loss of a major client would materially reduce earnings",
	},
	FactorContractQuality: {
		magnitude:            0.4,
		favorableLabel:       "Recurring service contracts",
		favorableRationale:   "Contracted recurring revenue transfers with the business",
		unfavorableLabel:     "No recurring contracts",
		unfavorableRationale: "Revenue depends on one-off jobs that must be re-won after the sale",
	},
	FactorRevenueTrend: {
		magnitude:            0.5,
		favorableLabel:       "Growing revenue",
		favorableRationale:   "Year-over-year growth supports a higher forward multiple",
		unfavorableLabel:     "Declining revenue",
		unfavorableRationale: "Shrinking revenue implies lower future earnings",
	},
	FactorOwnerInvolvement: {
		magnitude:            0.2,
		favorableLabel:       "Manager-run operations",
		favorableRationale:   "Day-to-day operations do not depend on the seller",
		unfavorableLabel:     "Owner-operator dependent",
		unfavorableRationale: "Customer relationships and operations rely on the current owner",
	},
	FactorDocumentation: {
		magnitude:            0.2,
		favorableLabel:       "Clean, verifiable financials",
		favorableRationale:   "Tax returns and P&L reconcile, easing lender approval",
		unfavorableLabel:     "Incomplete documentation",
		unfavorableRationale: "Unverifiable add-backs reduce what lenders and buyers will credit",
	},
	FactorEmployeeRetention: {
		magnitude:            0.2,
		favorableLabel:       "Stable, tenured staff",
		favorableRationale:   "Experienced crews stay through the transition",
		unfavorableLabel:     "High staff turnover",
		unfavorableRationale: "Recruiting and training costs erode margin",
	},
	FactorMarketGrowth: {
		magnitude:            0.3,
		favorableLabel:       "Expanding local market",
		favorableRationale:   "Local demand growth gives room to scale",
		unfavorableLabel:     "Contracting local market",
		unfavorableRationale: "Shrinking demand limits growth and pricing power",
	},
}

// KnownFactor reports whether f has a catalogue entry.
func KnownFactor(f Factor) bool {
	_, ok := adjustmentCatalogue[f]
	return ok
}

// Resolve maps a signal to its catalogue delta and rationale.
func (s AdjustmentSignal) Resolve() (AdjustmentFactor, bool) {
	rule, ok := adjustmentCatalogue[s.Factor]
	if !ok {
		return AdjustmentFactor{}, false
	}
	if s.Favorable {
		return AdjustmentFactor{Factor: rule.favorableLabel, Key: s.Factor, Delta: rule.magnitude, Rationale: rule.favorableRationale}, true
	}
	return AdjustmentFactor{Factor: rule.unfavorableLabel, Key: s.Factor, Delta: -rule.magnitude, Rationale: rule.unfavorableRationale}, true
}

// applyAdjustments resolves signals in order. Unknown factors are skipped and
// a repeated factor only counts the first time it appears.
func applyAdjustments(signals []AdjustmentSignal) ([]AdjustmentFactor, float64) {
	applied := make([]AdjustmentFactor, 0, len(signals))
	seen := make(map[Factor]bool, len(signals))
	total := 0.0
	for _, s := range signals {
		if seen[s.Factor] {
			continue
		}
		adj, ok := s.Resolve()
		if !ok {
			continue
		}
		seen[s.Factor] = true
		applied = append(applied, adj)
		total += adj.Delta
	}
	return applied, total
}

// DeriveSignals infers signals from numeric listing fields: revenue growth
// drives revenue_trend and top-client share drives client_concentration.
func DeriveSignals(fin ListingFinancials) []AdjustmentSignal {
	var out []AdjustmentSignal
	if fin.RevenueGrowth != nil && finite(*fin.RevenueGrowth) {
		switch g := *fin.RevenueGrowth; {
		case g >= 0.05:
			out = append(out, AdjustmentSignal{Factor: FactorRevenueTrend, Favorable: true})
		case g < 0:
			out = append(out, AdjustmentSignal{Factor: FactorRevenueTrend, Favorable: false})
		}
	}
	if fin.TopClientShare != nil && finite(*fin.TopClientShare) {
		switch s := *fin.TopClientShare; {
		case s >= 0.25:
			out = append(out, AdjustmentSignal{Factor: FactorClientConcentration, Favorable: false})
		case s <= 0.10:
			out = append(out, AdjustmentSignal{Factor: FactorClientConcentration, Favorable: true})
		}
	}
	return out
}

// MergeSignals returns explicit signals followed by derived ones whose factor
// was not explicitly given.
func MergeSignals(explicit, derived []AdjustmentSignal) []AdjustmentSignal {
	out := make([]AdjustmentSignal, 0, len(explicit)+len(derived))
	have := make(map[Factor]bool, len(explicit))
	for _, s := range explicit {
		have[s.Factor] = true
		out = append(out, s)
	}
	for _, s := range derived {
		if !have[s.Factor] {
			out = append(out, s)
		}
	}
	return out
}
