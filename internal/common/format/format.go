// Package format renders valuation numbers for people: emails, chat and CRM notes.
package format

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dealflow-workers/internal/valuation"
)

const (
	ContactBroker = "Contact broker"
	TBD           = "TBD"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Currency renders v rounded to whole units, e.g. $1,234,567 or -$5,000.
func Currency(v float64) string {
	rounded := math.Round(v)
	if rounded < 0 {
		return printer.Sprintf("-$%.0f", -rounded)
	}
	return printer.Sprintf("$%.0f", math.Abs(rounded))
}

// Percent renders a fraction as a percentage with the given decimals.
func Percent(fraction float64, decimals int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df%%%%", decimals), fraction*100)
}

// Multiple renders an SDE multiple such as 4.1x, or N/A.
func Multiple(m valuation.Multiple) string {
	if !m.Valid {
		return valuation.MultipleNotApplicable
	}
	return printer.Sprintf("%.1fx", m.Value)
}

// Projection is the flattened, display-ready view of an estimate handed to
// notification and CRM collaborators.
type Projection struct {
	ValuationLow      string `json:"valuationLow"`
	ValuationHigh     string `json:"valuationHigh"`
	ValuationRange    string `json:"valuationRange"`
	Confidence        string `json:"confidence"`
	AdjustedMultiple  string `json:"adjustedMultiple"`
	Price             string `json:"price"`
	DownPayment       string `json:"downPayment"`
	LoanAmount        string `json:"loanAmount"`
	MonthlyPayment    string `json:"monthlyPayment"`
	AnnualDebtService string `json:"annualDebtService"`
	CashFlowAfterDebt string `json:"cashFlowAfterDebt"`
	PriceToSDE        string `json:"priceToSde"`
	InterestRate      string `json:"interestRate"`
	Term              string `json:"term"`
}

// Project renders an estimate. Either part may be nil.
func Project(v *valuation.ValuationResult, f *valuation.FinancingScenario) Projection {
	p := Projection{
		ValuationLow:     ContactBroker,
		ValuationHigh:    ContactBroker,
		ValuationRange:   ContactBroker,
		Confidence:       TBD,
		AdjustedMultiple: TBD,
	}
	if v != nil {
		if v.Basis != valuation.BasisNone {
			p.ValuationLow = Currency(v.ValuationLow)
			p.ValuationHigh = Currency(v.ValuationHigh)
			p.ValuationRange = p.ValuationLow + " - " + p.ValuationHigh
		}
		p.Confidence = Percent(v.Confidence, 0)
		p.AdjustedMultiple = printer.Sprintf("%.2fx", v.AdjustedMultiple)
	}
	p.applyFinancing(f)
	return p
}

// ProjectEstimate is Project over a combined estimate.
func ProjectEstimate(e *valuation.Estimate) Projection {
	if e == nil {
		return Project(nil, nil)
	}
	return Project(e.Valuation, e.Financing)
}

// ProjectFinancing renders a financing scenario on its own.
func ProjectFinancing(f *valuation.FinancingScenario) Projection {
	p := Projection{
		ValuationLow:     ContactBroker,
		ValuationHigh:    ContactBroker,
		ValuationRange:   ContactBroker,
		Confidence:       TBD,
		AdjustedMultiple: TBD,
	}
	p.applyFinancing(f)
	return p
}

// applyFinancing falls back to placeholders rather than $0 when the scenario
// has no price and no SDE.
func (p *Projection) applyFinancing(f *valuation.FinancingScenario) {
	if f == nil || (f.Price == 0 && f.SDE == 0) {
		p.Price = ContactBroker
		p.DownPayment = ContactBroker
		p.LoanAmount = ContactBroker
		p.MonthlyPayment = TBD
		p.AnnualDebtService = TBD
		p.CashFlowAfterDebt = TBD
		p.PriceToSDE = valuation.MultipleNotApplicable
		p.InterestRate = TBD
		p.Term = TBD
		return
	}

	p.Price = Currency(f.Price)
	p.DownPayment = Currency(f.DownPayment)
	p.LoanAmount = Currency(f.LoanAmount)
	p.MonthlyPayment = Currency(f.MonthlyPayment)
	p.AnnualDebtService = Currency(f.AnnualDebtService)
	p.CashFlowAfterDebt = Currency(f.CashFlowAfterDebt)
	p.PriceToSDE = Multiple(f.Multiple)
	p.InterestRate = Percent(f.Config.AnnualInterestRate, 2)
	p.Term = Term(f.Config.TermMonths)
}

// Term renders a loan term in years when it divides evenly, else in months.
func Term(months int) string {
	if months > 0 && months%12 == 0 {
		years := months / 12
		if years == 1 {
			return "1 year"
		}
		return printer.Sprintf("%d years", years)
	}
	if months == 1 {
		return "1 month"
	}
	return printer.Sprintf("%d months", months)
}
