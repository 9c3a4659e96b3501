// internal/common/validation/schemas.go
package validation

// LeadCaptureSchema covers the "what is my business worth" form.
var LeadCaptureSchema = MustCompile("lead-capture", `{
  "type": "object",
  "required": ["email", "name", "vertical", "financials"],
  "properties": {
    "email":     {"type": "string", "format": "email", "maxLength": 254},
    "name":      {"type": "string", "minLength": 1, "maxLength": 200},
    "phone":     {"type": "string", "pattern": "^\\+?[0-9 ()\\-]{7,20}$"},
    "company":   {"type": "string", "maxLength": 200},
    "listingId": {"type": "string", "maxLength": 64},
    "vertical":  {"type": "string", "enum": ["cleaning", "landscape", "hvac"]},
    "consent":   {"type": "boolean"},
    "financials": {
      "type": "object",
      "properties": {
        "askingPrice":     {"type": "number", "minimum": 0},
        "revenue":         {"type": "number", "minimum": 0},
        "sde":             {"type": "number"},
        "location":        {"type": "string", "maxLength": 200},
        "description":     {"type": "string", "maxLength": 10000},
        "yearsInBusiness": {"type": "integer", "minimum": 0},
        "employees":       {"type": "integer", "minimum": 0},
        "topClientShare":  {"type": "number", "minimum": 0, "maximum": 1},
        "revenueGrowth":   {"type": "number", "minimum": -1}
      }
    }
  }
}`)

// FinancingRequestSchema covers the listing page financing calculator.
var FinancingRequestSchema = MustCompile("financing-request", `{
  "type": "object",
  "required": ["price"],
  "properties": {
    "listingId": {"type": "string"},
    "price":     {"type": "number", "minimum": 0},
    "sde":       {"type": "number"},
    "financing": {
      "type": "object",
      "properties": {
        "downPaymentFraction": {"type": "number", "minimum": 0, "maximum": 1},
        "annualInterestRate":  {"type": "number", "minimum": 0},
        "termMonths":          {"type": "integer", "minimum": 1}
      }
    }
  }
}`)
