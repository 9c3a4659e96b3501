// internal/workers/valuation/estimate-listing-valuation/models.go
package estimatelistingvaluation

import (
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/valuation"
)

// Input carries either a stored listing id or inline financials. Inline rows
// are normalized with models.ListingFromRow.
type Input struct {
	ListingID  string                       `json:"listingId"`
	Financials map[string]interface{}       `json:"financials,omitempty"`
	Vertical   string                       `json:"vertical,omitempty"`
	Signals    []valuation.AdjustmentSignal `json:"signals,omitempty"`
	Financing  *FinancingOverrides          `json:"financing,omitempty"`
}

// FinancingOverrides replaces individual loan terms for this job only.
type FinancingOverrides struct {
	DownPaymentFraction *float64 `json:"downPaymentFraction,omitempty"`
	AnnualInterestRate  *float64 `json:"annualInterestRate,omitempty"`
	TermMonths          *int     `json:"termMonths,omitempty"`
}

type Output struct {
	ListingID      string                       `json:"listingId,omitempty"`
	Vertical       string                       `json:"vertical"`
	Valuation      *valuation.ValuationResult   `json:"valuation"`
	Financing      *valuation.FinancingScenario `json:"financing"`
	FinancingPrice float64                      `json:"financingPrice"`
	Projection     format.Projection            `json:"projection"`
	ComputedAt     string                       `json:"computedAt"` // RFC 3339
}
