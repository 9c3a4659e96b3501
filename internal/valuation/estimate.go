// internal/valuation/estimate.go
package valuation

// Estimate pairs a valuation with the financing scenario it implies.
type Estimate struct {
	Valuation      *ValuationResult   `json:"valuation"`
	Financing      *FinancingScenario `json:"financing"`
	FinancingPrice float64            `json:"financingPrice"`
}

// EstimateListing runs the estimator and then feeds the asking price, or the
// valuation midpoint when no positive asking price exists, to the financing
// calculator. Missing SDE is financed as 0.
func EstimateListing(fin ListingFinancials, table *MultipleTable, signals []AdjustmentSignal, financing *FinancingConfig, opts ...Option) (*Estimate, error) {
	v, err := EstimateValuation(fin, table, signals, opts...)
	if err != nil {
		return nil, err
	}

	price := v.Midpoint()
	if fin.AskingPrice != nil && *fin.AskingPrice > 0 {
		price = *fin.AskingPrice
	}
	sde := 0.0
	if fin.SDE != nil {
		sde = *fin.SDE
	}

	f, err := ComputeFinancing(price, sde, financing)
	if err != nil {
		return nil, err
	}
	return &Estimate{Valuation: v, Financing: f, FinancingPrice: price}, nil
}
