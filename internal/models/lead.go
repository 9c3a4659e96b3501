// internal/models/lead.go
package models

import "time"

const LeadSourceValuationForm = "valuation_form"

// ValuationLead is a seller who asked what their business is worth.
type ValuationLead struct {
	ID            string    `json:"id"`
	ListingID     *string   `json:"listingId,omitempty"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Company       string    `json:"company,omitempty"`
	Vertical      string    `json:"vertical"`
	Revenue       *float64  `json:"revenue,omitempty"`
	SDE           *float64  `json:"sde,omitempty"`
	ValuationLow  float64   `json:"valuationLow"`
	ValuationHigh float64   `json:"valuationHigh"`
	Confidence    float64   `json:"confidence"`
	Source        string    `json:"source"`
	CRMID         *string   `json:"crmId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
