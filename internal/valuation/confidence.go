// internal/valuation/confidence.go
package valuation

import (
	"math"
	"strings"
)

// MinDescriptionLength is the trimmed length below which a description counts as sparse.
const MinDescriptionLength = 80

type confidencePenalty struct {
	amount  float64
	reason  string
	applies func(ListingFinancials) bool
}

var confidencePenalties = []confidencePenalty{
	{0.10, "Revenue not reported; smallest bracket assumed", func(f ListingFinancials) bool { return f.Revenue == nil }},
	{0.15, "SDE not reported; cash flow estimated", func(f ListingFinancials) bool { return f.SDE == nil }},
	{0.05, "Asking price not reported", func(f ListingFinancials) bool { return f.AskingPrice == nil }},
	{0.05, "Location not provided; local market unknown", func(f ListingFinancials) bool {
		return strings.TrimSpace(f.Location) == ""
	}},
	{0.05, "Listing description is sparse", sparseDescription},
}

func sparseDescription(f ListingFinancials) bool {
	return len([]rune(strings.TrimSpace(f.Description))) < MinDescriptionLength
}

// scoreConfidence starts at ceiling and subtracts a fixed penalty per missing
// or estimated field, clamped to [floor, ceiling].
func scoreConfidence(fin ListingFinancials, ceiling, floor float64) (float64, []string) {
	score := ceiling
	reasons := []string{}
	for _, p := range confidencePenalties {
		if p.applies(fin) {
			score -= p.amount
			reasons = append(reasons, p.reason)
		}
	}
	score = math.Min(ceiling, math.Max(floor, round(score, 2)))
	return score, reasons
}
