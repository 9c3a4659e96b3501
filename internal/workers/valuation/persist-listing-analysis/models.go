// internal/workers/valuation/persist-listing-analysis/models.go
package persistlistinganalysis

import (
	"dealflow-workers/internal/common/narrative"
	"dealflow-workers/internal/valuation"
)

type Input struct {
	ListingID  string                       `json:"listingId"`
	Valuation  *valuation.ValuationResult   `json:"valuation"`
	Financing  *valuation.FinancingScenario `json:"financing,omitempty"`
	Narrative  *narrative.Narrative         `json:"narrative,omitempty"`
	ComputedAt string                       `json:"computedAt,omitempty"` // RFC 3339
}

type Output struct {
	AnalysisID  string `json:"analysisId,omitempty"`
	Created     bool   `json:"created"`
	Superseded  bool   `json:"superseded"`
	PersistedAt string `json:"persistedAt"` // RFC 3339
}
