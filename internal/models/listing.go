// internal/models/listing.go
package models

import (
	"time"

	"dealflow-workers/internal/valuation"
)

// Listing is a marketplace listing as stored in the listings table.
type Listing struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	VerticalSlug    string     `json:"verticalSlug"`
	Status          string     `json:"status"`
	AskingPrice     *float64   `json:"askingPrice,omitempty"`
	Revenue         *float64   `json:"revenue,omitempty"`
	SDE             *float64   `json:"sde,omitempty"`
	Location        string     `json:"location,omitempty"`
	Description     string     `json:"description,omitempty"`
	YearsInBusiness *int       `json:"yearsInBusiness,omitempty"`
	Employees       *int       `json:"employees,omitempty"`
	TopClientShare  *float64   `json:"topClientShare,omitempty"`
	RevenueGrowth   *float64   `json:"revenueGrowth,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Financials projects the listing onto the estimator's input shape.
func (l *Listing) Financials() valuation.ListingFinancials {
	return valuation.ListingFinancials{
		AskingPrice:     l.AskingPrice,
		Revenue:         l.Revenue,
		SDE:             l.SDE,
		VerticalSlug:    valuation.Vertical(l.VerticalSlug),
		Location:        l.Location,
		Description:     l.Description,
		YearsInBusiness: l.YearsInBusiness,
		Employees:       l.Employees,
		TopClientShare:  l.TopClientShare,
		RevenueGrowth:   l.RevenueGrowth,
	}
}
