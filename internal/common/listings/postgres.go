// internal/common/listings/postgres.go
package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealflow-workers/internal/models"
)

const selectFinancialsQuery = `
	SELECT id, title, vertical_slug, status, asking_price, revenue, sde, location, description,
	       years_in_business, employees, top_client_share, revenue_growth, updated_at
	FROM listings
	WHERE id = $1 AND deleted_at IS NULL`

const selectAnalysisQuery = `
	SELECT id, listing_id, vertical, valuation_low, valuation_high, base_multiple, adjusted_multiple,
	       basis, confidence, confidence_reasons, adjustments, risk_table, financing, narrative, computed_at
	FROM listing_analyses
	WHERE listing_id = $1`

// upsertAnalysisQuery relies on the unique index on listing_analyses(listing_id).
// The conditional update leaves a newer stored row untouched and then returns
// no row. xmax is 0 only for a freshly inserted tuple.
const upsertAnalysisQuery = `
	INSERT INTO listing_analyses (
		id, listing_id, vertical, valuation_low, valuation_high, base_multiple, adjusted_multiple,
		basis, confidence, confidence_reasons, adjustments, risk_table, financing, narrative,
		computed_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
	ON CONFLICT (listing_id) DO UPDATE SET
		vertical = EXCLUDED.vertical, valuation_low = EXCLUDED.valuation_low,
		valuation_high = EXCLUDED.valuation_high, base_multiple = EXCLUDED.base_multiple,
		adjusted_multiple = EXCLUDED.adjusted_multiple, basis = EXCLUDED.basis,
		confidence = EXCLUDED.confidence, confidence_reasons = EXCLUDED.confidence_reasons,
		adjustments = EXCLUDED.adjustments, risk_table = EXCLUDED.risk_table,
		financing = EXCLUDED.financing, narrative = EXCLUDED.narrative,
		computed_at = EXCLUDED.computed_at, updated_at = EXCLUDED.updated_at
	WHERE listing_analyses.computed_at <= EXCLUDED.computed_at
	RETURNING id, (xmax = 0) AS inserted`

// PostgresStore implements Store on the listings and listing_analyses tables.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) GetFinancials(ctx context.Context, listingID string) (*models.Listing, error) {
	var (
		l                                        models.Listing
		location, description                    sql.NullString
		askingPrice, revenue, sde, share, growth sql.NullFloat64
		years, employees                         sql.NullInt64
		updatedAt                                sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, selectFinancialsQuery, listingID).Scan(
		&l.ID, &l.Title, &l.VerticalSlug, &l.Status, &askingPrice, &revenue, &sde, &location, &description,
		&years, &employees, &share, &growth, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrListingNotFound, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing %s: %w", listingID, err)
	}

	l.AskingPrice = floatPtr(askingPrice)
	l.Revenue = floatPtr(revenue)
	l.SDE = floatPtr(sde)
	l.TopClientShare = floatPtr(share)
	l.RevenueGrowth = floatPtr(growth)
	l.YearsInBusiness = intPtr(years)
	l.Employees = intPtr(employees)
	l.Location = location.String
	l.Description = description.String
	if updatedAt.Valid {
		l.UpdatedAt = &updatedAt.Time
	}
	return &l, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, listingID string) (*models.ListingAnalysis, error) {
	var (
		a                                      models.ListingAnalysis
		reasons, adjustments, risks, financing []byte
		narrative                              sql.NullString
	)

	err := s.db.QueryRowContext(ctx, selectAnalysisQuery, listingID).Scan(
		&a.ID, &a.ListingID, &a.Vertical, &a.ValuationLow, &a.ValuationHigh, &a.BaseMultiple, &a.AdjustedMultiple,
		&a.Basis, &a.Confidence, &reasons, &adjustments, &risks, &financing, &narrative, &a.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis for %s: %w", listingID, err)
	}

	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{reasons, &a.ConfidenceReasons},
		{adjustments, &a.Adjustments},
		{risks, &a.RiskTable},
		{financing, &a.Financing},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("corrupt analysis row for %s: %w", listingID, err)
		}
	}
	if narrative.Valid {
		a.Narrative = &narrative.String
	}
	return &a, nil
}

// UpsertAnalysis writes the analysis in a single statement so concurrent
// writers for one listing converge on one row. When the stored analysis was
// computed later, nothing is written and ErrStaleAnalysis is returned.
func (s *PostgresStore) UpsertAnalysis(ctx context.Context, a *models.ListingAnalysis) (bool, error) {
	payload, err := encodeAnalysis(a)
	if err != nil {
		return false, err
	}

	var (
		id       string
		inserted bool
	)
	err = s.db.QueryRowContext(ctx, upsertAnalysisQuery,
		uuid.New().String(), a.ListingID, a.Vertical, a.ValuationLow, a.ValuationHigh, a.BaseMultiple,
		a.AdjustedMultiple, a.Basis, a.Confidence, payload.reasons, payload.adjustments, payload.risks,
		payload.financing, a.Narrative, a.ComputedAt, s.now().UTC(),
	).Scan(&id, &inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrStaleAnalysis
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert analysis: %w", err)
	}

	a.ID = id
	return inserted, nil
}

type encodedAnalysis struct {
	reasons, adjustments, risks, financing []byte
}

func encodeAnalysis(a *models.ListingAnalysis) (*encodedAnalysis, error) {
	var (
		out encodedAnalysis
		err error
	)
	if out.reasons, err = json.Marshal(nonNil(a.ConfidenceReasons)); err != nil {
		return nil, fmt.Errorf("failed to encode confidence reasons: %w", err)
	}
	if out.adjustments, err = json.Marshal(a.Adjustments); err != nil {
		return nil, fmt.Errorf("failed to encode adjustments: %w", err)
	}
	if out.risks, err = json.Marshal(a.RiskTable); err != nil {
		return nil, fmt.Errorf("failed to encode risk table: %w", err)
	}
	if a.Financing != nil {
		if out.financing, err = json.Marshal(a.Financing); err != nil {
			return nil, fmt.Errorf("failed to encode financing: %w", err)
		}
	}
	return &out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
