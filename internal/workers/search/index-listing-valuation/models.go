// internal/workers/search/index-listing-valuation/models.go
package indexlistingvaluation

import "dealflow-workers/internal/valuation"

type Input struct {
	ListingID  string                     `json:"listingId"`
	Valuation  *valuation.ValuationResult `json:"valuation"`
	ComputedAt string                     `json:"computedAt,omitempty"`
}

type Output struct {
	ListingID string `json:"listingId"`
	Index     string `json:"index"`
	Indexed   bool   `json:"indexed"`
	Result    string `json:"result"` // "updated", "noop" or "document_missing"
	Version   int64  `json:"version,omitempty"`
	IndexedAt string `json:"indexedAt"`
}

// valuationDoc is the partial listing document written on update.
type valuationDoc struct {
	ValuationLow       float64 `json:"valuationLow"`
	ValuationHigh      float64 `json:"valuationHigh"`
	AdjustedMultiple   float64 `json:"adjustedMultiple"`
	Confidence         float64 `json:"confidence"`
	ValuationBasis     string  `json:"valuationBasis"`
	ValuationUpdatedAt string  `json:"valuationUpdatedAt"`
}

type updateRequest struct {
	Doc valuationDoc `json:"doc"`
}

type updateResponse struct {
	Result  string `json:"result"`
	Version int64  `json:"_version"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}
