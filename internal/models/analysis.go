// internal/models/analysis.go
package models

import (
	"time"

	"dealflow-workers/internal/valuation"
)

// ListingAnalysis is the persisted result of a valuation run. At most one row
// exists per listing; a newer run replaces the previous one.
type ListingAnalysis struct {
	ID                string                       `json:"id"`
	ListingID         string                       `json:"listingId"`
	Vertical          string                       `json:"vertical"`
	ValuationLow      float64                      `json:"valuationLow"`
	ValuationHigh     float64                      `json:"valuationHigh"`
	BaseMultiple      float64                      `json:"baseMultiple"`
	AdjustedMultiple  float64                      `json:"adjustedMultiple"`
	Basis             string                       `json:"basis"`
	Confidence        float64                      `json:"confidence"`
	ConfidenceReasons []string                     `json:"confidenceReasons"`
	Adjustments       []valuation.AdjustmentFactor `json:"adjustments"`
	RiskTable         []valuation.RiskEntry        `json:"riskTable"`
	Financing         *valuation.FinancingScenario `json:"financing,omitempty"`
	Narrative         *string                      `json:"narrative,omitempty"`
	ComputedAt        time.Time                    `json:"computedAt"`
}

// NewListingAnalysis flattens an estimate for storage. The id is assigned by
// the store.
func NewListingAnalysis(listingID string, est *valuation.Estimate, computedAt time.Time) *ListingAnalysis {
	v := est.Valuation
	return &ListingAnalysis{
		ListingID:         listingID,
		Vertical:          string(v.Vertical),
		ValuationLow:      v.ValuationLow,
		ValuationHigh:     v.ValuationHigh,
		BaseMultiple:      v.BaseMultiple,
		AdjustedMultiple:  v.AdjustedMultiple,
		Basis:             string(v.Basis),
		Confidence:        v.Confidence,
		ConfidenceReasons: v.ConfidenceReasons,
		Adjustments:       v.AppliedAdjustments,
		RiskTable:         v.RiskTable,
		Financing:         est.Financing,
		ComputedAt:        computedAt.UTC(),
	}
}
