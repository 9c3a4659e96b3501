// internal/models/row.go
package models

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Column aliases seen in imported listing rows and form payloads.
var rowAliases = map[string][]string{
	"id":              {"id", "listingId", "listing_id"},
	"title":           {"title", "header", "name", "businessName", "business_name"},
	"verticalSlug":    {"verticalSlug", "vertical_slug", "vertical", "category"},
	"status":          {"status"},
	"askingPrice":     {"askingPrice", "asking_price", "price", "listPrice", "list_price"},
	"revenue":         {"revenue", "annualRevenue", "annual_revenue", "grossRevenue", "gross_revenue"},
	"sde":             {"sde", "cashFlow", "cash_flow", "sellerDiscretionaryEarnings"},
	"location":        {"location", "city"},
	"description":     {"description", "summary"},
	"yearsInBusiness": {"yearsInBusiness", "years_in_business", "yearsEstablished"},
	"employees":       {"employees", "employeeCount", "employee_count"},
	"topClientShare":  {"topClientShare", "top_client_share"},
	"revenueGrowth":   {"revenueGrowth", "revenue_growth"},
}

// ListingFromRow normalizes a loosely keyed row into a Listing. Money values
// may be numbers or strings such as "$1,200,000". Blank values stay nil.
func ListingFromRow(row map[string]interface{}) (*Listing, error) {
	l := &Listing{
		ID:           rowString(row, "id"),
		Title:        rowString(row, "title"),
		VerticalSlug: strings.ToLower(rowString(row, "verticalSlug")),
		Status:       rowString(row, "status"),
		Location:     rowString(row, "location"),
		Description:  rowString(row, "description"),
	}

	floats := []struct {
		key    string
		target **float64
	}{
		{"askingPrice", &l.AskingPrice},
		{"revenue", &l.Revenue},
		{"sde", &l.SDE},
		{"topClientShare", &l.TopClientShare},
		{"revenueGrowth", &l.RevenueGrowth},
	}
	for _, f := range floats {
		v, err := rowFloat(row, f.key)
		if err != nil {
			return nil, err
		}
		*f.target = v
	}

	ints := []struct {
		key    string
		target **int
	}{
		{"yearsInBusiness", &l.YearsInBusiness},
		{"employees", &l.Employees},
	}
	for _, i := range ints {
		v, err := rowFloat(row, i.key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			n := int(*v)
			*i.target = &n
		}
	}
	return l, nil
}

func lookup(row map[string]interface{}, key string) (interface{}, bool) {
	for _, alias := range rowAliases[key] {
		if v, ok := row[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func rowString(row map[string]interface{}, key string) string {
	v, ok := lookup(row, key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func rowFloat(row map[string]interface{}, key string) (*float64, error) {
	v, ok := lookup(row, key)
	if !ok {
		return nil, nil
	}
	if s, isString := v.(string); isString {
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if s == "" {
			return nil, nil
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &f, nil
}
