// Package listings reads listing financials and stores valuation analyses.
package listings

import (
	"context"
	"errors"

	"dealflow-workers/internal/models"
)

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrAnalysisNotFound = errors.New("listing analysis not found")
	// ErrStaleAnalysis is returned when a newer analysis is already stored.
	ErrStaleAnalysis = errors.New("a newer analysis is already stored")
)

// Store is the listing persistence used by the valuation workers.
type Store interface {
	GetFinancials(ctx context.Context, listingID string) (*models.Listing, error)
	GetAnalysis(ctx context.Context, listingID string) (*models.ListingAnalysis, error)
	// UpsertAnalysis keeps one analysis per listing. It sets a.ID and reports
	// whether a new row was created.
	UpsertAnalysis(ctx context.Context, a *models.ListingAnalysis) (created bool, err error)
}
