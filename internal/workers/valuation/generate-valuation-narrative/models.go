// internal/workers/valuation/generate-valuation-narrative/models.go
package generatevaluationnarrative

import (
	"dealflow-workers/internal/common/narrative"
	"dealflow-workers/internal/valuation"
)

type Input struct {
	ListingID string                     `json:"listingId,omitempty"`
	Valuation *valuation.ValuationResult `json:"valuation"`
}

// Output always completes the job. When NarrativeAvailable is false the
// numeric valuation is shown without prose.
type Output struct {
	NarrativeAvailable bool                 `json:"narrativeAvailable"`
	Narrative          *narrative.Narrative `json:"narrative,omitempty"`
	NarrativeError     string               `json:"narrativeError,omitempty"`
}
