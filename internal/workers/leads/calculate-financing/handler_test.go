// internal/workers/leads/calculate-financing/handler_test.go
package calculatefinancing

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/valuation"
)

// ==========================
// Test Helper Functions
// ==========================

func ptr[T any](v T) *T { return &v }

func createTestHandler(t *testing.T) *Handler {
	return NewHandler(&Config{Financing: valuation.DefaultFinancingConfig()}, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Defaults(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		ListingID: "lst-5",
		Price:     ptr(1_000_000.0),
		SDE:       ptr(250_000.0),
	})
	require.NoError(t, err)

	f := out.Financing
	assert.Equal(t, "lst-5", out.ListingID)
	assert.InDelta(t, 100_000.0, f.DownPayment, 1e-6)
	assert.InDelta(t, 900_000.0, f.LoanAmount, 1e-6)
	assert.InDelta(t, 10_919.48, f.MonthlyPayment, 0.01)
	assert.InDelta(t, 250_000-12*10_919.48, f.CashFlowAfterDebt, 0.2)
	assert.True(t, f.Multiple.Valid)
	assert.InDelta(t, 4.0, f.Multiple.Value, 1e-9)

	assert.Equal(t, "$1,000,000", out.Projection.Price)
	assert.Equal(t, "$10,919", out.Projection.MonthlyPayment)
	assert.Equal(t, "4.0x", out.Projection.PriceToSDE)
	assert.Equal(t, "10 years", out.Projection.Term)
}

func TestHandler_Execute_Overrides(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		Price: ptr(1_000_000.0),
		Financing: &FinancingOverrides{
			DownPaymentFraction: ptr(0.2),
			AnnualInterestRate:  ptr(0.065),
			TermMonths:          ptr(84),
		},
	})
	require.NoError(t, err)

	f := out.Financing
	assert.InDelta(t, 800_000.0, f.LoanAmount, 1e-6)
	assert.InDelta(t, 11_879.55, f.MonthlyPayment, 0.01)
	assert.False(t, f.Multiple.Valid)
	assert.Equal(t, valuation.MultipleNotApplicable, out.Projection.PriceToSDE)
	assert.Equal(t, "7 years", out.Projection.Term)
}

func TestHandler_Execute_ZeroPriceAndSDEShowsPlaceholders(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{Price: ptr(0.0)})
	require.NoError(t, err)

	assert.Zero(t, out.Financing.MonthlyPayment)
	assert.Equal(t, format.ContactBroker, out.Projection.Price)
	assert.Equal(t, format.TBD, out.Projection.MonthlyPayment)
}

func TestHandler_Execute_AllCashPurchase(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		Price:     ptr(800_000.0),
		SDE:       ptr(200_000.0),
		Financing: &FinancingOverrides{DownPaymentFraction: ptr(1.0)},
	})
	require.NoError(t, err)

	assert.Equal(t, 800_000.0, out.Financing.DownPayment)
	assert.Zero(t, out.Financing.LoanAmount)
	assert.Zero(t, out.Financing.MonthlyPayment)
	assert.Equal(t, 200_000.0, out.Financing.CashFlowAfterDebt)
}

func TestHandler_Execute_ExtremeTermCompletesWithFiniteOutput(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		Price:     ptr(1_000_000.0),
		SDE:       ptr(150_000.0),
		Financing: &FinancingOverrides{TermMonths: ptr(200_000)},
	})
	require.NoError(t, err)
	assert.InDelta(t, 6_000.0, out.Financing.MonthlyPayment, 1e-6)

	_, err = json.Marshal(out)
	require.NoError(t, err)
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_Execute_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
		field string
	}{
		{name: "missing price", input: &Input{SDE: ptr(100.0)}, field: "price"},
		{name: "negative price", input: &Input{Price: ptr(-1.0)}, field: "price"},
		{
			name:  "down payment above price",
			input: &Input{Price: ptr(10.0), Financing: &FinancingOverrides{DownPaymentFraction: ptr(1.01)}},
			field: "financing.downPaymentFraction",
		},
		{
			name:  "zero term",
			input: &Input{Price: ptr(10.0), Financing: &FinancingOverrides{TermMonths: ptr(0)}},
			field: "financing.termMonths",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t)
			out, err := h.Execute(context.Background(), tt.input)
			assert.Nil(t, out)

			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr), "got %v", err)
			assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
			assert.False(t, stdErr.Retryable)
			assert.Contains(t, stdErr.Details, tt.field)
		})
	}
}

func TestInput_AbsentFieldsStayNil(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"price":525000,"financing":{"termMonths":60}}`), &in))

	require.NotNil(t, in.Price)
	assert.Nil(t, in.SDE)
	require.NotNil(t, in.Financing)
	assert.Nil(t, in.Financing.DownPaymentFraction)
	assert.Equal(t, 60, *in.Financing.TermMonths)
}
