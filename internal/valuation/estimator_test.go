// internal/valuation/estimator_test.go
package valuation

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

const richDescription = "Commercial cleaning company serving office parks and medical clinics under multi-year janitorial contracts."

func fullListing() ListingFinancials {
	return ListingFinancials{
		AskingPrice:     ptr(2_000_000.0),
		Revenue:         ptr(2_500_000.0),
		SDE:             ptr(470_000.0),
		VerticalSlug:    VerticalCleaning,
		Location:        "Austin, TX",
		Description:     richDescription,
		YearsInBusiness: ptr(12),
		Employees:       ptr(40),
	}
}

// ==========================
// Scenario Tests
// ==========================

func TestEstimateValuation_TopBracketWithAdjustments(t *testing.T) {
	signals := []AdjustmentSignal{
		{Factor: FactorClientConcentration, Favorable: true},
		{Factor: FactorOwnerInvolvement, Favorable: false},
	}

	r, err := EstimateValuation(fullListing(), validTable(), signals)
	require.NoError(t, err)

	assert.Equal(t, 3, r.BracketIndex)
	assert.Equal(t, 4.0, r.BaseMultiple)
	assert.Equal(t, 3.5, r.BaseMultipleMin)
	assert.Equal(t, 4.5, r.BaseMultipleMax)
	assert.Equal(t, 4.1, r.AdjustedMultiple)
	assert.Equal(t, 1_734_300.0, r.ValuationLow)
	assert.Equal(t, 2_119_700.0, r.ValuationHigh)
	assert.Equal(t, BasisSDE, r.Basis)

	require.Len(t, r.AppliedAdjustments, 2)
	assert.Equal(t, "Diversified client base", r.AppliedAdjustments[0].Factor)
	assert.Equal(t, 0.3, r.AppliedAdjustments[0].Delta)
	assert.Equal(t, "Owner-operator dependent", r.AppliedAdjustments[1].Factor)
	assert.Equal(t, -0.2, r.AppliedAdjustments[1].Delta)
	assert.NotEmpty(t, r.AppliedAdjustments[1].Rationale)

	assert.Equal(t, DefaultConfidenceCeiling, r.Confidence)
	assert.Empty(t, r.ConfidenceReasons)

	require.Len(t, r.RiskTable, 1)
	assert.Equal(t, RiskOperational, r.RiskTable[0].Category)
	assert.Equal(t, SeverityMedium, r.RiskTable[0].Severity)
}

func TestEstimateValuation_MissingRevenueAndSDE(t *testing.T) {
	fin := fullListing()
	fin.Revenue = nil
	fin.SDE = nil

	r, err := EstimateValuation(fin, validTable(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, r.BracketIndex)
	assert.Equal(t, 2.0, r.BaseMultiple)
	assert.Equal(t, BasisNone, r.Basis)
	assert.Zero(t, r.ValuationLow)
	assert.Zero(t, r.ValuationHigh)
	assert.Len(t, r.ConfidenceReasons, 2)
	assert.Equal(t, 0.70, r.Confidence)

	require.Len(t, r.RiskTable, 1)
	assert.Equal(t, RiskDocumentation, r.RiskTable[0].Category)
	assert.Equal(t, SeverityHigh, r.RiskTable[0].Severity)
}

func TestEstimateValuation_RevenueFallback(t *testing.T) {
	fin := fullListing()
	fin.Revenue = ptr(1_000_000.0)
	fin.SDE = ptr(-20_000.0)

	r, err := EstimateValuation(fin, validTable(), nil)
	require.NoError(t, err)

	assert.Equal(t, BasisRevenue, r.Basis)
	assert.Equal(t, 540_000.0, r.ValuationLow)
	assert.Equal(t, 660_000.0, r.ValuationHigh)
	assert.Equal(t, 600_000.0, r.Midpoint())

	require.NotEmpty(t, r.RiskTable)
	assert.Equal(t, RiskFinancial, r.RiskTable[0].Category)
	assert.Equal(t, SeverityHigh, r.RiskTable[0].Severity)
}

func TestEstimateValuation_Options(t *testing.T) {
	r, err := EstimateValuation(fullListing(), validTable(), nil, WithSpread(0.2))
	require.NoError(t, err)
	assert.Equal(t, 0.2, r.Spread)
	assert.Equal(t, math.Round(470_000*4.0*0.8), r.ValuationLow)
	assert.Equal(t, math.Round(470_000*4.0*1.2), r.ValuationHigh)

	empty := ListingFinancials{VerticalSlug: VerticalCleaning}
	r, err = EstimateValuation(empty, validTable(), nil, WithConfidenceBounds(0.3, 0.9))
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.Confidence)

	r, err = EstimateValuation(empty, validTable(), nil, WithConfidenceBounds(0.6, 0.9))
	require.NoError(t, err)
	assert.Equal(t, 0.6, r.Confidence)

	for _, opt := range []Option{
		WithSpread(-0.1),
		WithSpread(1),
		WithSpread(math.NaN()),
		WithConfidenceBounds(0.9, 0.5),
		WithConfidenceBounds(-0.1, 0.9),
		WithConfidenceBounds(0.5, 1.1),
	} {
		_, err := EstimateValuation(fullListing(), validTable(), nil, opt)
		assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
	}
}

func TestEstimateValuation_Errors(t *testing.T) {
	_, err := EstimateValuation(fullListing(), nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = EstimateValuation(fullListing(), &MultipleTable{Vertical: VerticalHVAC}, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	for _, mutate := range []func(f *ListingFinancials){
		func(f *ListingFinancials) { f.Revenue = ptr(math.NaN()) },
		func(f *ListingFinancials) { f.SDE = ptr(math.Inf(1)) },
		func(f *ListingFinancials) { f.AskingPrice = ptr(math.Inf(-1)) },
		func(f *ListingFinancials) { f.RevenueGrowth = ptr(math.NaN()) },
	} {
		fin := fullListing()
		mutate(&fin)
		_, err := EstimateValuation(fin, validTable(), nil)
		assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
	}
}

// ==========================
// Adjustment Tests
// ==========================

func TestApplyAdjustments(t *testing.T) {
	applied, total := applyAdjustments([]AdjustmentSignal{
		{Factor: FactorRevenueTrend, Favorable: true},
		{Factor: "weather", Favorable: true},
		{Factor: FactorRevenueTrend, Favorable: false},
		{Factor: FactorContractQuality, Favorable: false},
	})

	require.Len(t, applied, 2)
	assert.Equal(t, "Growing revenue", applied[0].Factor)
	assert.Equal(t, "No recurring contracts", applied[1].Factor)
	assert.InDelta(t, 0.1, total, 1e-9)
}

func TestDeriveSignals(t *testing.T) {
	fin := ListingFinancials{RevenueGrowth: ptr(0.12), TopClientShare: ptr(0.4)}
	derived := DeriveSignals(fin)
	assert.Equal(t, []AdjustmentSignal{
		{Factor: FactorRevenueTrend, Favorable: true},
		{Factor: FactorClientConcentration, Favorable: false},
	}, derived)

	assert.Empty(t, DeriveSignals(ListingFinancials{RevenueGrowth: ptr(0.02), TopClientShare: ptr(0.15)}))

	merged := MergeSignals([]AdjustmentSignal{{Factor: FactorClientConcentration, Favorable: true}}, derived)
	assert.Equal(t, []AdjustmentSignal{
		{Factor: FactorClientConcentration, Favorable: true},
		{Factor: FactorRevenueTrend, Favorable: true},
	}, merged)
}

// ==========================
// Risk Table Tests
// ==========================

func TestAssessRisks(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *ListingFinancials)
		signals  []AdjustmentSignal
		category string
		severity Severity
	}{
		{name: "thin margin", mutate: func(f *ListingFinancials) { f.SDE = ptr(200_000.0) }, category: RiskFinancial, severity: SeverityMedium},
		{name: "young business", mutate: func(f *ListingFinancials) { f.YearsInBusiness = ptr(1) }, category: RiskOperational, severity: SeverityMedium},
		{name: "staff turnover", signals: []AdjustmentSignal{{Factor: FactorEmployeeRetention}}, category: RiskOperational, severity: SeverityMedium},
		{name: "dominant client", mutate: func(f *ListingFinancials) { f.TopClientShare = ptr(0.55) }, category: RiskClientConcentration, severity: SeverityHigh},
		{name: "large client", mutate: func(f *ListingFinancials) { f.TopClientShare = ptr(0.3) }, category: RiskClientConcentration, severity: SeverityMedium},
		{name: "concentration signal", signals: []AdjustmentSignal{{Factor: FactorClientConcentration}}, category: RiskClientConcentration, severity: SeverityMedium},
		{name: "steep decline", mutate: func(f *ListingFinancials) { f.RevenueGrowth = ptr(-0.2) }, category: RiskMarket, severity: SeverityHigh},
		{name: "mild decline", mutate: func(f *ListingFinancials) { f.RevenueGrowth = ptr(-0.05) }, category: RiskMarket, severity: SeverityMedium},
		{name: "contracting market", signals: []AdjustmentSignal{{Factor: FactorMarketGrowth}}, category: RiskMarket, severity: SeverityMedium},
		{name: "poor records", signals: []AdjustmentSignal{{Factor: FactorDocumentation}}, category: RiskDocumentation, severity: SeverityMedium},
		{name: "sparse description", mutate: func(f *ListingFinancials) { f.Description = "Great business" }, category: RiskDocumentation, severity: SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fin := fullListing()
			if tt.mutate != nil {
				tt.mutate(&fin)
			}
			risks := assessRisks(fin, tt.signals)
			require.Len(t, risks, 1)
			assert.Equal(t, tt.category, risks[0].Category)
			assert.Equal(t, tt.severity, risks[0].Severity)
			require.NotNil(t, risks[0].Mitigation)
		})
	}

	assert.Empty(t, assessRisks(fullListing(), []AdjustmentSignal{{Factor: FactorMarketGrowth, Favorable: true}}))
}

// ==========================
// Property Tests
// ==========================

func TestEstimateValuation_AdjustedMultipleNeverNegative(t *testing.T) {
	factors := []Factor{
		FactorClientConcentration, FactorContractQuality, FactorRevenueTrend, FactorOwnerInvolvement,
		FactorDocumentation, FactorEmployeeRetention, FactorMarketGrowth, "unknown",
	}
	tables := DefaultTables()
	tables[VerticalCleaning].Brackets[0].SDEMultipleMin = 0
	tables[VerticalCleaning].Brackets[0].SDEMultipleMax = 0.2

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		var signals []AdjustmentSignal
		for n := rng.Intn(12); n > 0; n-- {
			signals = append(signals, AdjustmentSignal{Factor: factors[rng.Intn(len(factors))], Favorable: rng.Intn(4) == 0})
		}
		for _, tb := range tables {
			r, err := EstimateValuation(ListingFinancials{VerticalSlug: tb.Vertical, SDE: ptr(100_000.0)}, tb, signals)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, r.AdjustedMultiple, 0.0)
			assert.GreaterOrEqual(t, r.ValuationLow, 0.0)
		}
	}
}

func TestEstimateValuation_ConfidenceBounds(t *testing.T) {
	full, err := EstimateValuation(fullListing(), validTable(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.95, full.Confidence)

	empty, err := EstimateValuation(ListingFinancials{VerticalSlug: VerticalCleaning}, validTable(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.55, empty.Confidence)
	assert.Len(t, empty.ConfidenceReasons, 5)

	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		fin := ListingFinancials{VerticalSlug: VerticalCleaning}
		if rng.Intn(2) == 0 {
			fin.Revenue = ptr(rng.Float64() * 5_000_000)
		}
		if rng.Intn(2) == 0 {
			fin.SDE = ptr(rng.NormFloat64() * 300_000)
		}
		if rng.Intn(2) == 0 {
			fin.AskingPrice = ptr(rng.Float64() * 3_000_000)
		}
		if rng.Intn(2) == 0 {
			fin.Location = "Denver, CO"
		}
		fin.Description = strings.Repeat("x", rng.Intn(160))

		r, err := EstimateValuation(fin, validTable(), nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r.Confidence, 0.55)
		assert.LessOrEqual(t, r.Confidence, 0.95)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

// ==========================
// Combined Estimate
// ==========================

func TestEstimateListing(t *testing.T) {
	est, err := EstimateListing(fullListing(), validTable(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2_000_000.0, est.FinancingPrice)
	assert.Equal(t, 470_000.0, est.Financing.SDE)
	assert.Equal(t, 200_000.0, est.Financing.DownPayment)

	fin := fullListing()
	fin.AskingPrice = nil
	est, err = EstimateListing(fin, validTable(), nil, &FinancingConfig{DownPaymentFraction: 0.2, AnnualInterestRate: 0.07, TermMonths: 84})
	require.NoError(t, err)
	assert.Equal(t, est.Valuation.Midpoint(), est.FinancingPrice)
	assert.Equal(t, 1_880_000.0, est.FinancingPrice)
	assert.Equal(t, 84, est.Financing.Config.TermMonths)

	fin.SDE = nil
	fin.Revenue = nil
	est, err = EstimateListing(fin, validTable(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, est.FinancingPrice)
	assert.Zero(t, est.Financing.MonthlyPayment)
	assert.False(t, est.Financing.Multiple.Valid)

	_, err = EstimateListing(fullListing(), validTable(), nil, &FinancingConfig{TermMonths: 0})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
