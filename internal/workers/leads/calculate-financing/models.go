// internal/workers/leads/calculate-financing/models.go
package calculatefinancing

import (
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/valuation"
)

// Input mirrors the financing calculator form. Optional fields are pointers so
// the schema can tell absent from zero.
type Input struct {
	ListingID string              `json:"listingId,omitempty"`
	Price     *float64            `json:"price,omitempty"`
	SDE       *float64            `json:"sde,omitempty"`
	Financing *FinancingOverrides `json:"financing,omitempty"`
}

type FinancingOverrides struct {
	DownPaymentFraction *float64 `json:"downPaymentFraction,omitempty"`
	AnnualInterestRate  *float64 `json:"annualInterestRate,omitempty"`
	TermMonths          *int     `json:"termMonths,omitempty"`
}

type Output struct {
	ListingID  string                       `json:"listingId,omitempty"`
	Financing  *valuation.FinancingScenario `json:"financing"`
	Projection format.Projection            `json:"projection"`
}
