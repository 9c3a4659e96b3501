// internal/workers/valuation/estimate-listing-valuation/handler_test.go
package estimatelistingvaluation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/listings"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeStore struct {
	listings map[string]*models.Listing
	err      error
}

func (f *fakeStore) GetFinancials(_ context.Context, id string) (*models.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.listings[id]
	if !ok {
		return nil, listings.ErrListingNotFound
	}
	return l, nil
}

func (f *fakeStore) GetAnalysis(context.Context, string) (*models.ListingAnalysis, error) {
	return nil, listings.ErrAnalysisNotFound
}

func (f *fakeStore) UpsertAnalysis(context.Context, *models.ListingAnalysis) (bool, error) {
	return false, stderrors.New("not implemented")
}

func ptr[T any](v T) *T { return &v }

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{
		Timeout:   5 * time.Second,
		Tables:    valuation.DefaultTables(),
		Financing: valuation.DefaultFinancingConfig(),
	}
}

func landscapeListing() *models.Listing {
	return &models.Listing{
		ID:              "lst-100",
		Title:           "Tampa Lawn Pros",
		VerticalSlug:    "landscape",
		AskingPrice:     ptr(1_750_000.0),
		Revenue:         ptr(2_400_000.0),
		SDE:             ptr(450_000.0),
		Location:        "Tampa, FL",
		Description:     "Commercial and HOA maintenance routes with a 14 truck fleet and long-tenured crew leads.",
		YearsInBusiness: ptr(12),
		Employees:       ptr(38),
		RevenueGrowth:   ptr(0.08),
	}
}

func createTestHandler(t *testing.T, store listings.Store) *Handler {
	h := NewHandler(createTestConfig(), store, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) *errors.StandardError {
	t.Helper()
	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr), "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_StoredListing(t *testing.T) {
	store := &fakeStore{listings: map[string]*models.Listing{"lst-100": landscapeListing()}}
	h := createTestHandler(t, store)

	out, err := h.Execute(context.Background(), &Input{
		ListingID: "lst-100",
		Signals:   []valuation.AdjustmentSignal{{Factor: valuation.FactorContractQuality, Favorable: true}},
	})
	require.NoError(t, err)

	assert.Equal(t, "lst-100", out.ListingID)
	assert.Equal(t, "landscape", out.Vertical)
	assert.Equal(t, "2026-03-14T09:30:00Z", out.ComputedAt)

	v := out.Valuation
	require.NotNil(t, v)
	assert.Equal(t, 2, v.BracketIndex)
	assert.Equal(t, 3.5, v.BaseMultiple)
	assert.Equal(t, 4.4, v.AdjustedMultiple)
	assert.Equal(t, valuation.BasisSDE, v.Basis)
	assert.Equal(t, 1_782_000.0, v.ValuationLow)
	assert.Equal(t, 2_178_000.0, v.ValuationHigh)
	assert.GreaterOrEqual(t, v.Confidence, valuation.DefaultConfidenceFloor)
	assert.LessOrEqual(t, v.Confidence, valuation.DefaultConfidenceCeiling)

	require.Len(t, v.AppliedAdjustments, 2)
	assert.Equal(t, valuation.FactorContractQuality, v.AppliedAdjustments[0].Key)
	assert.Equal(t, valuation.FactorRevenueTrend, v.AppliedAdjustments[1].Key)

	require.NotNil(t, out.Financing)
	assert.Equal(t, 1_750_000.0, out.FinancingPrice)
	assert.Equal(t, 175_000.0, out.Financing.DownPayment)
	assert.Equal(t, 1_575_000.0, out.Financing.LoanAmount)

	assert.Equal(t, "$1,782,000", out.Projection.ValuationLow)
	assert.Equal(t, "$1,750,000", out.Projection.Price)
}

func TestHandler_Execute_ExplicitSignalOverridesDerived(t *testing.T) {
	store := &fakeStore{listings: map[string]*models.Listing{"lst-100": landscapeListing()}}
	h := createTestHandler(t, store)

	out, err := h.Execute(context.Background(), &Input{
		ListingID: "lst-100",
		Signals:   []valuation.AdjustmentSignal{{Factor: valuation.FactorRevenueTrend, Favorable: false}},
	})
	require.NoError(t, err)

	require.Len(t, out.Valuation.AppliedAdjustments, 1)
	assert.Equal(t, -0.5, out.Valuation.AppliedAdjustments[0].Delta)
	assert.Equal(t, 3.0, out.Valuation.AdjustedMultiple)
}

func TestHandler_Execute_InlineFinancials(t *testing.T) {
	h := createTestHandler(t, &fakeStore{})

	out, err := h.Execute(context.Background(), &Input{
		Financials: map[string]interface{}{
			"header":         "Metro Janitorial",
			"vertical":       "landscape",
			"annual_revenue": "$1,200,000",
			"cash_flow":      260_000.0,
		},
		Vertical: "cleaning",
		Financing: &FinancingOverrides{
			DownPaymentFraction: ptr(0.2),
			TermMonths:          ptr(84),
		},
	})
	require.NoError(t, err)

	assert.Empty(t, out.ListingID)
	assert.Equal(t, "cleaning", out.Vertical)
	assert.Equal(t, 3, out.Valuation.BracketIndex)
	assert.Equal(t, 4.0, out.Valuation.AdjustedMultiple)
	assert.Equal(t, 936_000.0, out.Valuation.ValuationLow)
	assert.Equal(t, 1_144_000.0, out.Valuation.ValuationHigh)

	// No asking price: the midpoint is financed.
	assert.Equal(t, 1_040_000.0, out.FinancingPrice)
	assert.Equal(t, 0.2, out.Financing.Config.DownPaymentFraction)
	assert.Equal(t, 0.08, out.Financing.Config.AnnualInterestRate)
	assert.Equal(t, 84, out.Financing.Config.TermMonths)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	unsupported := landscapeListing()
	unsupported.VerticalSlug = "pool-service"

	tests := []struct {
		name      string
		store     *fakeStore
		input     *Input
		code      errors.ErrorCode
		retryable bool
	}{
		{
			name:  "listing not found",
			store: &fakeStore{},
			input: &Input{ListingID: "missing"},
			code:  errors.ErrCodeListingNotFound,
		},
		{
			name:  "unsupported vertical",
			store: &fakeStore{listings: map[string]*models.Listing{"lst-9": unsupported}},
			input: &Input{ListingID: "lst-9"},
			code:  errors.ErrCodeUnsupportedVertical,
		},
		{
			name:  "unsupported vertical override",
			store: &fakeStore{listings: map[string]*models.Listing{"lst-100": landscapeListing()}},
			input: &Input{ListingID: "lst-100", Vertical: "plumbing"},
			code:  errors.ErrCodeUnsupportedVertical,
		},
		{
			name:  "no listing and no financials",
			store: &fakeStore{},
			input: &Input{},
			code:  errors.ErrCodeInvalidInput,
		},
		{
			name:  "unparseable inline revenue",
			store: &fakeStore{},
			input: &Input{Financials: map[string]interface{}{"vertical": "hvac", "revenue": "lots"}},
			code:  errors.ErrCodeInvalidInput,
		},
		{
			name:      "store unavailable",
			store:     &fakeStore{err: stderrors.New("connection refused")},
			input:     &Input{ListingID: "lst-100"},
			code:      errors.ErrCodeQueryExecutionFailed,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.store)
			out, err := h.Execute(context.Background(), tt.input)
			assert.Nil(t, out)
			stdErr := requireCode(t, err, tt.code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestHandler_Execute_InvalidFinancingOverride(t *testing.T) {
	store := &fakeStore{listings: map[string]*models.Listing{"lst-100": landscapeListing()}}
	h := createTestHandler(t, store)

	_, err := h.Execute(context.Background(), &Input{
		ListingID: "lst-100",
		Financing: &FinancingOverrides{TermMonths: ptr(0)},
	})
	requireCode(t, err, errors.ErrCodeInvalidInput)
	assert.True(t, stderrors.Is(err, valuation.ErrInvalidInput))
}

// ==========================
// Input / Config Tests
// ==========================

func TestInput_JSONDecoding(t *testing.T) {
	raw := `{"listingId":"lst-1","signals":[{"factor":"client_concentration","favorable":false}],"financing":{"annualInterestRate":0.065}}`

	var in Input
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	assert.Equal(t, "lst-1", in.ListingID)
	require.Len(t, in.Signals, 1)
	assert.Equal(t, valuation.FactorClientConcentration, in.Signals[0].Factor)
	require.NotNil(t, in.Financing)
	assert.Nil(t, in.Financing.TermMonths)
	assert.Equal(t, 0.065, *in.Financing.AnnualInterestRate)
}

func TestLoadConfig(t *testing.T) {
	appCfg := &config.Config{
		Workers: map[string]config.WorkerConfig{TaskType: {Enabled: true, Timeout: 12000}},
		Valuation: config.ValuationConfig{
			Spread:            0.1,
			ConfidenceCeiling: 0.95,
			ConfidenceFloor:   0.55,
			Financing:         valuation.DefaultFinancingConfig(),
			Verticals: map[string]*valuation.MultipleTable{
				"hvac": valuation.DefaultTables()[valuation.VerticalHVAC],
			},
		},
	}

	cfg, err := LoadConfig(appCfg)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, cfg.Timeout)
	assert.Len(t, cfg.Tables, 1)
	assert.Len(t, cfg.Options, 2)

	appCfg.Valuation.Verticals["pools"] = valuation.DefaultTables()[valuation.VerticalHVAC]
	_, err = LoadConfig(appCfg)
	assert.True(t, stderrors.Is(err, valuation.ErrInvalidConfiguration))
}
