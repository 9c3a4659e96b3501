// internal/workers/search/index-listing-valuation/handler_test.go
package indexlistingvaluation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/database"
	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/valuation"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type capturedRequest struct {
	method string
	path   string
	query  map[string]string
	body   updateRequest
}

func esServer(t *testing.T, status int, response string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method = r.Method
			got.path = r.URL.Path
			got.query = map[string]string{}
			for k := range r.URL.Query() {
				got.query[k] = r.URL.Query().Get(k)
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createTestHandler(t *testing.T, srv *httptest.Server) *Handler {
	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL, ListingIndex: "listings"})
	require.NoError(t, err)

	h := NewHandler(&Config{Timeout: 5 * time.Second, Index: es.ListingIndex, RetryOnConflict: 3}, es.Client, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h
}

func createTestInput() *Input {
	return &Input{
		ListingID: "lst-7",
		Valuation: &valuation.ValuationResult{
			AdjustedMultiple: 3.9,
			ValuationLow:     1_404_000,
			ValuationHigh:    1_716_000,
			Basis:            valuation.BasisSDE,
			Confidence:       0.85,
		},
		ComputedAt: "2026-06-01T11:59:00Z",
	}
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

func TestHandler_Execute_UpdatesListingDocument(t *testing.T) {
	var got capturedRequest
	srv := esServer(t, http.StatusOK, `{"_index":"listings","_id":"lst-7","_version":4,"result":"updated"}`, &got)

	out, err := createTestHandler(t, srv).Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/listings/_update/lst-7", got.path)
	assert.Equal(t, "3", got.query["retry_on_conflict"])

	doc := got.body.Doc
	assert.Equal(t, 1_404_000.0, doc.ValuationLow)
	assert.Equal(t, 1_716_000.0, doc.ValuationHigh)
	assert.Equal(t, 3.9, doc.AdjustedMultiple)
	assert.Equal(t, 0.85, doc.Confidence)
	assert.Equal(t, "sde", doc.ValuationBasis)
	assert.Equal(t, "2026-06-01T11:59:00Z", doc.ValuationUpdatedAt)

	assert.True(t, out.Indexed)
	assert.Equal(t, "updated", out.Result)
	assert.Equal(t, int64(4), out.Version)
	assert.Equal(t, "listings", out.Index)
	assert.Equal(t, "2026-06-01T12:00:00Z", out.IndexedAt)
}

func TestHandler_Execute_DefaultsUpdatedAtToNow(t *testing.T) {
	var got capturedRequest
	srv := esServer(t, http.StatusOK, `{"_version":1,"result":"noop"}`, &got)

	input := createTestInput()
	input.ComputedAt = ""

	out, err := createTestHandler(t, srv).Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "2026-06-01T12:00:00Z", got.body.Doc.ValuationUpdatedAt)
	assert.Equal(t, "noop", out.Result)
}

func TestHandler_Execute_MissingDocumentCompletesUnindexed(t *testing.T) {
	srv := esServer(t, http.StatusNotFound,
		`{"error":{"type":"document_missing_exception","reason":"[lst-7]: document missing"},"status":404}`, nil)

	out, err := createTestHandler(t, srv).Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.False(t, out.Indexed)
	assert.Equal(t, resultDocumentMissing, out.Result)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_IndexNotFound(t *testing.T) {
	srv := esServer(t, http.StatusNotFound,
		`{"error":{"type":"index_not_found_exception","reason":"no such index [listings]"},"status":404}`, nil)

	_, err := createTestHandler(t, srv).Execute(context.Background(), createTestInput())
	stdErr := requireCode(t, err, errors.ErrCodeIndexNotFound)
	assert.False(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "listings")
}

func TestHandler_Execute_ServerErrorIsRetryable(t *testing.T) {
	srv := esServer(t, http.StatusInternalServerError,
		`{"error":{"type":"circuit_breaking_exception","reason":"data too large"},"status":500}`, nil)

	_, err := createTestHandler(t, srv).Execute(context.Background(), createTestInput())
	stdErr := requireCode(t, err, errors.ErrCodeSearchIndexFailed)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "data too large")
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	srv := esServer(t, http.StatusOK, `{}`, nil)
	h := createTestHandler(t, srv)

	badTime := createTestInput()
	badTime.ComputedAt = "last week"

	tests := []struct {
		name  string
		input *Input
	}{
		{name: "missing listing id", input: &Input{Valuation: &valuation.ValuationResult{}}},
		{name: "missing valuation", input: &Input{ListingID: "lst-7"}},
		{name: "bad computedAt", input: badTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			requireCode(t, err, errors.ErrCodeInvalidInput)
		})
	}
}

func TestLoadConfig_DefaultIndex(t *testing.T) {
	cfg := LoadConfig(&config.Config{})
	assert.Equal(t, defaultListingIndex, cfg.Index)
	assert.Equal(t, 3, cfg.RetryOnConflict)
}
