// internal/valuation/financing.go
package valuation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MultipleNotApplicable is rendered in place of price/SDE when SDE is not positive.
const MultipleNotApplicable = "N/A"

// FinancingConfig describes an SBA-style loan structure.
type FinancingConfig struct {
	DownPaymentFraction float64 `json:"downPaymentFraction" mapstructure:"down_payment_fraction"`
	AnnualInterestRate  float64 `json:"annualInterestRate" mapstructure:"annual_interest_rate"`
	TermMonths          int     `json:"termMonths" mapstructure:"term_months"`
}

// DefaultFinancingConfig returns 10% down, 8% APR over 10 years.
func DefaultFinancingConfig() FinancingConfig {
	return FinancingConfig{
		DownPaymentFraction: 0.10,
		AnnualInterestRate:  0.08,
		TermMonths:          120,
	}
}

// Validate rejects loan structures the amortization formula cannot represent.
func (c FinancingConfig) Validate() error {
	if err := checkFinite("downPaymentFraction", c.DownPaymentFraction); err != nil {
		return err
	}
	if err := checkFinite("annualInterestRate", c.AnnualInterestRate); err != nil {
		return err
	}
	if c.DownPaymentFraction < 0 || c.DownPaymentFraction > 1 {
		return invalidInput("downPaymentFraction must be within [0,1], got %v", c.DownPaymentFraction)
	}
	if c.AnnualInterestRate < 0 {
		return invalidInput("annualInterestRate must be >= 0, got %v", c.AnnualInterestRate)
	}
	if c.TermMonths <= 0 {
		return invalidInput("termMonths must be > 0, got %d", c.TermMonths)
	}
	return nil
}

// Multiple is price/SDE, or not applicable when SDE <= 0.
type Multiple struct {
	Value float64
	Valid bool
}

// NewMultiple returns price/sde when sde is positive and the N/A sentinel otherwise.
func NewMultiple(price, sde float64) Multiple {
	if sde > 0 {
		return Multiple{Value: price / sde, Valid: true}
	}
	return Multiple{}
}

func (m Multiple) String() string {
	if !m.Valid {
		return MultipleNotApplicable
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

// MarshalJSON emits a number, or "N/A" when the multiple is not applicable.
func (m Multiple) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return json.Marshal(MultipleNotApplicable)
	}
	return json.Marshal(round(m.Value, 2))
}

// UnmarshalJSON accepts either a JSON number or the "N/A" sentinel.
func (m *Multiple) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Multiple{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == MultipleNotApplicable || s == "" {
			*m = Multiple{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("multiple: %w", err)
		}
		*m = Multiple{Value: v, Valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Multiple{Value: v, Valid: true}
	return nil
}

// FinancingScenario is the modeled loan for a given price and SDE.
type FinancingScenario struct {
	Price             float64         `json:"price"`
	SDE               float64         `json:"sde"`
	DownPayment       float64         `json:"downPayment"`
	LoanAmount        float64         `json:"loanAmount"`
	MonthlyRate       float64         `json:"monthlyRate"`
	MonthlyPayment    float64         `json:"monthlyPayment"`
	AnnualDebtService float64         `json:"annualDebtService"`
	CashFlowAfterDebt float64         `json:"cashFlowAfterDebt"`
	Multiple          Multiple        `json:"multiple"`
	Config            FinancingConfig `json:"config"`
}

// ComputeFinancing amortizes (1-downPayment) of price over the configured term.
// A nil cfg uses DefaultFinancingConfig.
//
// FORMULA: P = L × r / (1 − (1+r)^−n), with P = L/n when r = 0.
func ComputeFinancing(price, sde float64, cfg *FinancingConfig) (*FinancingScenario, error) {
	c := DefaultFinancingConfig()
	if cfg != nil {
		c = *cfg
	}
	if err := checkFinite("price", price); err != nil {
		return nil, err
	}
	if err := checkFinite("sde", sde); err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, invalidInput("price must be >= 0, got %v", price)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	downPayment := price * c.DownPaymentFraction
	loanAmount := price * (1 - c.DownPaymentFraction)
	monthlyRate := c.AnnualInterestRate / 12

	monthlyPayment := 0.0
	if loanAmount > 0 {
		monthlyPayment = amortize(loanAmount, monthlyRate, float64(c.TermMonths))
	}

	annualDebtService := monthlyPayment * 12
	cashFlow := sde - annualDebtService
	if !finite(monthlyPayment) || !finite(annualDebtService) || !finite(cashFlow) {
		return nil, invalidInput("financing for price %v overflows with rate %v over %d months",
			price, c.AnnualInterestRate, c.TermMonths)
	}

	return &FinancingScenario{
		Price:             price,
		SDE:               sde,
		DownPayment:       downPayment,
		LoanAmount:        loanAmount,
		MonthlyRate:       monthlyRate,
		MonthlyPayment:    monthlyPayment,
		AnnualDebtService: annualDebtService,
		CashFlowAfterDebt: cashFlow,
		Multiple:          NewMultiple(price, sde),
		Config:            c,
	}, nil
}

// amortize returns the level payment on loan at rate r per period over n
// periods. The discount factor is computed through Log1p/Expm1 so it neither
// overflows for large r·n nor cancels to zero for tiny r.
func amortize(loan, r, n float64) float64 {
	if r <= 0 {
		return loan / n
	}
	denom := -math.Expm1(-n * math.Log1p(r))
	if denom <= 0 {
		return loan / n
	}
	return loan * (r / denom)
}
