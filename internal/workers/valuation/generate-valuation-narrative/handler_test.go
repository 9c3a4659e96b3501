// internal/workers/valuation/generate-valuation-narrative/handler_test.go
package generatevaluationnarrative

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/listings"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/narrative"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeGenerator struct {
	result      *narrative.Narrative
	err         error
	block       bool
	gotListing  *models.Listing
	gotDeadline bool
}

func (f *fakeGenerator) Generate(ctx context.Context, listing *models.Listing, _ *valuation.ValuationResult) (*narrative.Narrative, error) {
	f.gotListing = listing
	_, f.gotDeadline = ctx.Deadline()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

type fakeStore struct {
	listing *models.Listing
}

func (f *fakeStore) GetFinancials(_ context.Context, id string) (*models.Listing, error) {
	if f.listing == nil || f.listing.ID != id {
		return nil, listings.ErrListingNotFound
	}
	return f.listing, nil
}

func (f *fakeStore) GetAnalysis(context.Context, string) (*models.ListingAnalysis, error) {
	return nil, listings.ErrAnalysisNotFound
}

func (f *fakeStore) UpsertAnalysis(context.Context, *models.ListingAnalysis) (bool, error) {
	return false, nil
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, NarrativeTimeout: time.Second}
}

func createTestInput() *Input {
	return &Input{
		ListingID: "lst-3",
		Valuation: &valuation.ValuationResult{
			Vertical:      valuation.VerticalCleaning,
			ValuationLow:  900_000,
			ValuationHigh: 1_100_000,
			Basis:         valuation.BasisSDE,
			Confidence:    0.8,
		},
	}
}

func failures(reason string) float64 {
	return testutil.ToFloat64(metrics.NarrativeFailures.WithLabelValues(reason))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	gen := &fakeGenerator{result: &narrative.Narrative{
		Summary:         "Commercial cleaning route with recurring contracts",
		Highlights:      []string{"42 contracts"},
		AdvisoryNumbers: map[string]float64{"valuationHigh": 2_000_000},
	}}
	store := &fakeStore{listing: &models.Listing{ID: "lst-3", Title: "Metro Janitorial"}}
	h := NewHandler(createTestConfig(), gen, store, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.True(t, out.NarrativeAvailable)
	require.NotNil(t, out.Narrative)
	assert.Equal(t, "Commercial cleaning route with recurring contracts", out.Narrative.Summary)
	assert.Empty(t, out.NarrativeError)
	require.NotNil(t, gen.gotListing)
	assert.Equal(t, "Metro Janitorial", gen.gotListing.Title)
	assert.True(t, gen.gotDeadline)
}

func TestHandler_Execute_ListingLookupFailureStillGenerates(t *testing.T) {
	gen := &fakeGenerator{result: &narrative.Narrative{Summary: "ok"}}
	h := NewHandler(createTestConfig(), gen, &fakeStore{}, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.True(t, out.NarrativeAvailable)
	assert.Nil(t, gen.gotListing)
}

// ==========================
// Degradation Tests
// ==========================

func TestHandler_Execute_FailuresCompleteWithoutNarrative(t *testing.T) {
	tests := []struct {
		name   string
		gen    narrative.Generator
		reason string
	}{
		{name: "not configured", gen: nil, reason: reasonDisabled},
		{name: "model error", gen: &fakeGenerator{err: stderrors.New("503 from upstream")}, reason: reasonError},
		{name: "malformed", gen: &fakeGenerator{err: narrative.ErrMissingSummary}, reason: reasonMalformed},
		{name: "timeout", gen: &fakeGenerator{block: true}, reason: reasonTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig()
			cfg.NarrativeTimeout = 20 * time.Millisecond
			h := NewHandler(cfg, tt.gen, nil, logger.NewTestLogger(t))

			before := failures(tt.reason)
			out, err := h.Execute(context.Background(), createTestInput())
			require.NoError(t, err)

			assert.False(t, out.NarrativeAvailable)
			assert.Nil(t, out.Narrative)
			assert.Equal(t, tt.reason, out.NarrativeError)
			assert.Equal(t, before+1, failures(tt.reason))
		})
	}
}

func TestHandler_Execute_MissingValuation(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeGenerator{}, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{ListingID: "lst-3"})
	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
}
