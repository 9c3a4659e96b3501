// internal/common/zoho/crm.go
package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	httpclient "dealflow-workers/internal/common/http"
)

// Lead is the subset of the Zoho Leads module written by the lead capture flow.
type Lead struct {
	ID            string  `json:"id,omitempty"`
	Email         string  `json:"Email"`
	FirstName     string  `json:"First_Name,omitempty"`
	LastName      string  `json:"Last_Name"`
	Phone         string  `json:"Phone,omitempty"`
	Company       string  `json:"Company,omitempty"`
	Source        string  `json:"Lead_Source,omitempty"`
	Industry      string  `json:"Industry,omitempty"`
	AnnualRevenue float64 `json:"Annual_Revenue,omitempty"`
	Description   string  `json:"Description,omitempty"`
	ValuationLow  float64 `json:"Valuation_Low,omitempty"`
	ValuationHigh float64 `json:"Valuation_High,omitempty"`
	ListingID     string  `json:"Listing_Id,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

// CRMClient talks to the Zoho CRM v2 REST API.
type CRMClient struct {
	oauthToken string
	baseURL    string
	http       *httpclient.Client
}

func NewCRMClient(baseURL, oauthToken string, timeout time.Duration) *CRMClient {
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    baseURL,
		http:       httpclient.NewClient(timeout),
	}
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

// CreateLead inserts lead and returns the CRM record id.
func (c *CRMClient) CreateLead(ctx context.Context, lead *Lead) (string, error) {
	payload := map[string]interface{}{
		"data": []Lead{*lead},
	}

	var resp upsertResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/Leads", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create lead: %w", err)
	}

	if len(resp.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if resp.Data[0].Status != "success" {
		return "", fmt.Errorf("lead creation failed: %s", resp.Data[0].Message)
	}
	return resp.Data[0].Details.ID, nil
}

// SearchLeadsByEmail returns leads matching email. Zoho answers 204 with an
// empty body when nothing matches.
func (c *CRMClient) SearchLeadsByEmail(ctx context.Context, email string) ([]Lead, error) {
	endpoint := fmt.Sprintf("%s/Leads/search?email=%s", c.baseURL, url.QueryEscape(email))

	var result struct {
		Data []Lead `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, endpoint, c.headers(), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search leads: %w", err)
	}
	return result.Data, nil
}
