// internal/valuation/risk.go
package valuation

// Severity grades a risk finding.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

const (
	RiskFinancial           = "Financial"
	RiskOperational         = "Operational"
	RiskClientConcentration = "Client Concentration"
	RiskMarket              = "Market"
	RiskDocumentation       = "Documentation"
)

// RiskEntry is one triggered risk category.
type RiskEntry struct {
	Category   string   `json:"category"`
	Finding    string   `json:"finding"`
	Severity   Severity `json:"severity"`
	Mitigation *string  `json:"mitigation"`
}

type riskCondition struct {
	severity   Severity
	finding    string
	mitigation string
	triggered  func(ListingFinancials, signalSet) bool
}

type riskCategory struct {
	name       string
	conditions []riskCondition
}

// signalSet holds the first-seen favorability of each known factor.
type signalSet map[Factor]bool

func newSignalSet(signals []AdjustmentSignal) signalSet {
	set := make(signalSet, len(signals))
	for _, s := range signals {
		if !KnownFactor(s.Factor) {
			continue
		}
		if _, ok := set[s.Factor]; !ok {
			set[s.Factor] = s.Favorable
		}
	}
	return set
}

func (s signalSet) unfavorable(f Factor) bool {
	fav, ok := s[f]
	return ok && !fav
}

func margin(f ListingFinancials) (float64, bool) {
	if f.SDE == nil || f.Revenue == nil || *f.Revenue <= 0 {
		return 0, false
	}
	return *f.SDE / *f.Revenue, true
}

func lowMargin(f ListingFinancials, _ signalSet) bool {
	m, ok := margin(f)
	return ok && m < 0.10
}

var riskCatalogue = []riskCategory{
	{
		name: RiskFinancial,
		conditions: []riskCondition{
			{SeverityHigh, "Business reports zero or negative SDE", "Verify add-backs and review a recast P&L before pricing",
				func(f ListingFinancials, _ signalSet) bool { return f.SDE != nil && *f.SDE <= 0 }},
			{SeverityMedium, "SDE margin below 10% of revenue", "Review cost structure and pricing against regional peers",
				lowMargin},
		},
	},
	{
		name: RiskOperational,
		conditions: []riskCondition{
			{SeverityMedium, "Operations depend on the current owner", "Negotiate a seller transition period and document key processes",
				func(_ ListingFinancials, s signalSet) bool { return s.unfavorable(FactorOwnerInvolvement) }},
			{SeverityMedium, "High staff turnover", "Plan retention incentives for key employees",
				func(_ ListingFinancials, s signalSet) bool { return s.unfavorable(FactorEmployeeRetention) }},
			{SeverityMedium, "Less than two years of operating history", "Request monthly financials since inception",
				func(f ListingFinancials, _ signalSet) bool { return f.YearsInBusiness != nil && *f.YearsInBusiness < 2 }},
		},
	},
	{
		name: RiskClientConcentration,
		conditions: []riskCondition{
			{SeverityHigh, "A single client accounts for half or more of revenue", "Tie part of the price to client retention through an earn-out",
				func(f ListingFinancials, _ signalSet) bool { return f.TopClientShare != nil && *f.TopClientShare >= 0.50 }},
			{SeverityMedium, "A single client accounts for a quarter or more of revenue", "Confirm contract terms with the largest clients",
				func(f ListingFinancials, _ signalSet) bool { return f.TopClientShare != nil && *f.TopClientShare >= 0.25 }},
			{SeverityMedium, "Revenue concentrated in few clients", "Confirm contract terms with the largest clients",
				func(_ ListingFinancials, s signalSet) bool { return s.unfavorable(FactorClientConcentration) }},
		},
	},
	{
		name: RiskMarket,
		conditions: []riskCondition{
			{SeverityHigh, "Revenue fell more than 10% year over year", "Identify the cause of the decline before committing",
				func(f ListingFinancials, _ signalSet) bool { return f.RevenueGrowth != nil && *f.RevenueGrowth < -0.10 }},
			{SeverityMedium, "Revenue declined year over year", "Compare against local market trends",
				func(f ListingFinancials, _ signalSet) bool { return f.RevenueGrowth != nil && *f.RevenueGrowth < 0 }},
			{SeverityMedium, "Local market is contracting", "Assess expansion into adjacent service areas",
				func(_ ListingFinancials, s signalSet) bool { return s.unfavorable(FactorMarketGrowth) }},
		},
	},
	{
		name: RiskDocumentation,
		conditions: []riskCondition{
			{SeverityHigh, "Core financials not reported", "Obtain three years of tax returns and P&L statements",
				func(f ListingFinancials, _ signalSet) bool { return f.Revenue == nil || f.SDE == nil }},
			{SeverityMedium, "Financial records are incomplete", "Engage an accountant for a quality-of-earnings review",
				func(_ ListingFinancials, s signalSet) bool { return s.unfavorable(FactorDocumentation) }},
			{SeverityLow, "Listing description lacks operating detail", "Request a seller questionnaire",
				func(f ListingFinancials, _ signalSet) bool { return sparseDescription(f) }},
		},
	},
}

// assessRisks evaluates each category in order and keeps the first triggered
// condition. Categories with nothing triggered are omitted.
func assessRisks(fin ListingFinancials, signals []AdjustmentSignal) []RiskEntry {
	set := newSignalSet(signals)
	entries := []RiskEntry{}
	for _, cat := range riskCatalogue {
		for _, cond := range cat.conditions {
			if !cond.triggered(fin, set) {
				continue
			}
			mitigation := cond.mitigation
			entries = append(entries, RiskEntry{
				Category:   cat.name,
				Finding:    cond.finding,
				Severity:   cond.severity,
				Mitigation: &mitigation,
			})
			break
		}
	}
	return entries
}
