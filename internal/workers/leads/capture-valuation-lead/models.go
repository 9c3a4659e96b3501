// internal/workers/leads/capture-valuation-lead/models.go
package capturevaluationlead

import (
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/valuation"
)

type Input struct {
	Email      string          `json:"email,omitempty"`
	Name       string          `json:"name,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Company    string          `json:"company,omitempty"`
	ListingID  string          `json:"listingId,omitempty"`
	Vertical   string          `json:"vertical,omitempty"`
	Consent    *bool           `json:"consent,omitempty"`
	Financials *LeadFinancials `json:"financials,omitempty"`
}

// LeadFinancials are the self-reported figures from the form.
type LeadFinancials struct {
	AskingPrice     *float64 `json:"askingPrice,omitempty"`
	Revenue         *float64 `json:"revenue,omitempty"`
	SDE             *float64 `json:"sde,omitempty"`
	Location        string   `json:"location,omitempty"`
	Description     string   `json:"description,omitempty"`
	YearsInBusiness *int     `json:"yearsInBusiness,omitempty"`
	Employees       *int     `json:"employees,omitempty"`
	TopClientShare  *float64 `json:"topClientShare,omitempty"`
	RevenueGrowth   *float64 `json:"revenueGrowth,omitempty"`
}

func (f *LeadFinancials) toValuation(vertical valuation.Vertical) valuation.ListingFinancials {
	return valuation.ListingFinancials{
		AskingPrice:     f.AskingPrice,
		Revenue:         f.Revenue,
		SDE:             f.SDE,
		VerticalSlug:    vertical,
		Location:        f.Location,
		Description:     f.Description,
		YearsInBusiness: f.YearsInBusiness,
		Employees:       f.Employees,
		TopClientShare:  f.TopClientShare,
		RevenueGrowth:   f.RevenueGrowth,
	}
}

type Output struct {
	LeadID     string                     `json:"leadId"`
	CRMID      string                     `json:"crmId,omitempty"`
	CRMSynced  bool                       `json:"crmSynced"`
	Valuation  *valuation.ValuationResult `json:"valuation"`
	Projection format.Projection          `json:"projection"`
	CreatedAt  string                     `json:"createdAt"` // RFC 3339
}
